package event

import (
	"context"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// PackageAuditHandler writes one structured log line per package
// lifecycle event, so dispatches and cancellations can be traced back
// without querying the database.
type PackageAuditHandler struct {
	logger *zap.Logger
}

// NewPackageAuditHandler creates a new PackageAuditHandler
func NewPackageAuditHandler(logger *zap.Logger) *PackageAuditHandler {
	return &PackageAuditHandler{logger: logger.Named("package_audit")}
}

// EventTypes implements shared.EventHandler.
func (h *PackageAuditHandler) EventTypes() []string {
	return []string{
		relief.EventTypePackageSubmitted,
		relief.EventTypePackageDispatched,
		relief.EventTypePackageCancelled,
	}
}

// Handle implements shared.EventHandler.
func (h *PackageAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	l := logger.Enrich(ctx, h.logger).With(
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("package_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)

	switch e := event.(type) {
	case *relief.PackageSubmittedEvent:
		l.Info("Relief package submitted",
			zap.String("relief_request_id", e.ReliefRequestID.String()),
			zap.Int("lines", len(e.Lines)),
			zap.String("total_qty", totalQuantity(e.Lines)),
		)
	case *relief.PackageDispatchedEvent:
		l.Info("Relief package dispatched",
			zap.String("relief_request_id", e.ReliefRequestID.String()),
			zap.Int("lines", len(e.Lines)),
			zap.String("total_qty", totalQuantity(e.Lines)),
		)
	case *relief.PackageCancelledEvent:
		l.Info("Relief package cancelled",
			zap.String("relief_request_id", e.ReliefRequestID.String()),
		)
	default:
		l.Debug("Ignoring unrelated event")
	}
	return nil
}

func totalQuantity(lines []relief.PackageLineSnapshot) string {
	if len(lines) == 0 {
		return "0"
	}
	total := lines[0].Quantity
	for _, line := range lines[1:] {
		total = total.Add(line.Quantity)
	}
	return total.String()
}

var _ shared.EventHandler = (*PackageAuditHandler)(nil)
