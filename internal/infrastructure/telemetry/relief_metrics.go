package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// WarehouseStock is the stock position of one warehouse summed over items.
type WarehouseStock struct {
	WarehouseID uuid.UUID
	Usable      decimal.Decimal
	Reserved    decimal.Decimal
}

// ReliefMetricsSource supplies the periodically sampled gauges.
type ReliefMetricsSource interface {
	StockByWarehouse(ctx context.Context) ([]WarehouseStock, error)
	ActiveLockCount(ctx context.Context, now time.Time) (int64, error)
}

// ReliefMetricsConfig holds configuration for ReliefMetrics.
type ReliefMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	Source          ReliefMetricsSource
	CollectInterval time.Duration // default 1 minute
	Now             func() time.Time
}

// ReliefMetrics counts package lifecycle events and samples reserved stock
// and live fulfillment locks.
type ReliefMetrics struct {
	logger   *zap.Logger
	source   ReliefMetricsSource
	interval time.Duration
	now      func() time.Time

	packageTransitions *Counter
	packageLines       *Counter
	dispatchedQuantity *QuantityCounter
	usableQuantity     *FloatGauge
	reservedQuantity   *FloatGauge
	activeLocks        *Gauge

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReliefMetrics creates the relief instruments.
func NewReliefMetrics(cfg ReliefMetricsConfig) (*ReliefMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	m := &ReliefMetrics{
		logger:   cfg.Logger,
		source:   cfg.Source,
		interval: cfg.CollectInterval,
		now:      cfg.Now,
		stopCh:   make(chan struct{}),
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.interval <= 0 {
		m.interval = time.Minute
	}
	if m.now == nil {
		m.now = time.Now
	}

	var err error
	if m.packageTransitions, err = NewCounter(cfg.Meter, "drims_package_transitions_total",
		"Relief package lifecycle transitions", "{package}"); err != nil {
		return nil, err
	}
	if m.packageLines, err = NewCounter(cfg.Meter, "drims_package_lines_total",
		"Batch lines carried by submitted and dispatched packages", "{line}"); err != nil {
		return nil, err
	}
	if m.dispatchedQuantity, err = NewQuantityCounter(cfg.Meter, "drims_dispatched_quantity_total",
		"Quantity deducted from stock by dispatched packages", "{unit}"); err != nil {
		return nil, err
	}
	if m.usableQuantity, err = NewFloatGauge(cfg.Meter, "drims_warehouse_usable_quantity",
		"Usable quantity per warehouse", "{unit}"); err != nil {
		return nil, err
	}
	if m.reservedQuantity, err = NewFloatGauge(cfg.Meter, "drims_warehouse_reserved_quantity",
		"Reserved quantity per warehouse", "{unit}"); err != nil {
		return nil, err
	}
	if m.activeLocks, err = NewGauge(cfg.Meter, "drims_active_fulfillment_locks",
		"Fulfillment locks that have not expired", "{lock}"); err != nil {
		return nil, err
	}
	return m, nil
}

// EventTypes implements shared.EventHandler.
func (m *ReliefMetrics) EventTypes() []string {
	return []string{
		relief.EventTypePackageSubmitted,
		relief.EventTypePackageDispatched,
		relief.EventTypePackageCancelled,
	}
}

// Handle implements shared.EventHandler.
func (m *ReliefMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *relief.PackageSubmittedEvent:
		m.packageTransitions.Inc(ctx, AttrTransition.String("submitted"))
		m.packageLines.Add(ctx, int64(len(e.Lines)), AttrTransition.String("submitted"))
	case *relief.PackageDispatchedEvent:
		m.packageTransitions.Inc(ctx, AttrTransition.String("dispatched"))
		m.packageLines.Add(ctx, int64(len(e.Lines)), AttrTransition.String("dispatched"))
		for _, line := range e.Lines {
			m.dispatchedQuantity.Add(ctx, line.Quantity.InexactFloat64(),
				AttrItemID.String(line.ItemID.String()),
				AttrWarehouseID.String(line.WarehouseID.String()),
			)
		}
	case *relief.PackageCancelledEvent:
		m.packageTransitions.Inc(ctx, AttrTransition.String("cancelled"))
	}
	return nil
}

// Collect samples the gauges once.
func (m *ReliefMetrics) Collect(ctx context.Context) {
	if m.source == nil {
		return
	}
	stock, err := m.source.StockByWarehouse(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect warehouse stock metrics", zap.Error(err))
	} else {
		for _, s := range stock {
			wh := AttrWarehouseID.String(s.WarehouseID.String())
			m.usableQuantity.Record(ctx, s.Usable.InexactFloat64(), wh)
			m.reservedQuantity.Record(ctx, s.Reserved.InexactFloat64(), wh)
		}
	}

	locks, err := m.source.ActiveLockCount(ctx, m.now())
	if err != nil {
		m.logger.Warn("Failed to collect fulfillment lock metrics", zap.Error(err))
		return
	}
	m.activeLocks.Record(ctx, locks)
}

// Start samples the gauges every interval until Stop or ctx is done.
func (m *ReliefMetrics) Start(ctx context.Context) {
	if m.source == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.Collect(ctx)
		for {
			select {
			case <-ticker.C:
				m.Collect(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	m.logger.Info("Relief metrics collection started", zap.Duration("interval", m.interval))
}

// Stop ends periodic collection. Safe to call more than once.
func (m *ReliefMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

var _ shared.EventHandler = (*ReliefMetrics)(nil)
