package relief

import (
	"context"
	"errors"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/logger"
	"github.com/drims/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// txRunner executes one service operation in a traced transaction.
//
// Business failures (*shared.DomainError) roll back and reach the caller
// unchanged. Anything else is an infrastructure fault: it is logged with its
// cause and surfaces as DATABASE_ERROR.
type txRunner struct {
	scope   TransactionScope
	service string
	logger  *zap.Logger
}

func (r txRunner) run(ctx context.Context, op string, fn func(ctx context.Context, repos TransactionalRepositories) error) error {
	ctx, span := telemetry.StartServiceSpan(ctx, r.service, op)
	defer span.End()
	if id := logger.GetReliefRequestID(ctx); id != "" {
		telemetry.SetAttribute(span, telemetry.SpanAttrReliefRequestID, id)
	}

	err := r.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return fn(ctx, repos)
	})
	if err == nil {
		telemetry.SetOK(span)
		return nil
	}
	telemetry.RecordError(span, err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	r.logger.Error("Transaction failed",
		zap.String("service", r.service),
		zap.String("operation", op),
		zap.String("trace_id", telemetry.GetTraceID(ctx)),
		zap.Error(err),
	)
	return relief.NewDatabaseError(op)
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
