package relief

import (
	"context"
	"fmt"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceiveCommand puts stock of one item on hand at a warehouse.
type ReceiveCommand struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	// BatchNo tops up an existing batch with the same number when set.
	BatchNo    *string
	BatchDate  *time.Time
	ExpiryDate *time.Time
	Quantity   decimal.Decimal
	UOMCode    string
}

// IntakeService records donations and transfer receipts as batches.
type IntakeService struct {
	tx     txRunner
	ledger *ReservationLedger
	logger *zap.Logger
}

// NewIntakeService creates a new IntakeService
func NewIntakeService(txScope TransactionScope, ledger *ReservationLedger, logger *zap.Logger) *IntakeService {
	return &IntakeService{
		tx:     txRunner{scope: txScope, service: "intake", logger: logger},
		ledger: ledger,
		logger: logger,
	}
}

// ReceiveStock creates or increments a batch and refreshes the warehouse
// aggregate, creating it on first receipt.
func (s *IntakeService) ReceiveStock(ctx context.Context, cmd ReceiveCommand) (*relief.Batch, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, shared.NewDomainError(relief.CodeInvalidQuantity, "Received quantity must be greater than zero")
	}

	var received *relief.Batch
	err := s.tx.run(ctx, "receive_stock", func(ctx context.Context, repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, cmd.ItemID)
		if err != nil {
			return notFoundAs(err, "Item", cmd.ItemID)
		}
		warehouse, err := repos.WarehouseRepo().FindByID(ctx, cmd.WarehouseID)
		if err != nil {
			return notFoundAs(err, "Warehouse", cmd.WarehouseID)
		}
		if !warehouse.IsActive() {
			return shared.NewDomainError(shared.ErrInvalidState.Code,
				fmt.Sprintf("Warehouse %s is inactive", warehouse.Name))
		}

		uom := cmd.UOMCode
		if uom == "" {
			uom = item.DefaultUOM
		}
		expiry := cmd.ExpiryDate
		if !item.CanExpire {
			expiry = nil
		}

		batch, isNew, err := s.targetBatch(ctx, repos, cmd, expiry, uom)
		if err != nil {
			return err
		}
		if err := batch.Receive(cmd.Quantity); err != nil {
			return err
		}
		if isNew {
			err = repos.BatchRepo().Create(ctx, batch)
		} else {
			err = repos.BatchRepo().Update(ctx, batch)
		}
		if err != nil {
			return err
		}

		received = batch
		return s.ledger.recompute(ctx, repos, []relief.StockKey{batch.StockKey()})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock received",
		zap.String("batch_id", received.ID.String()),
		zap.String("item_id", cmd.ItemID.String()),
		zap.String("warehouse_id", cmd.WarehouseID.String()),
		zap.String("quantity", cmd.Quantity.String()),
	)
	return received, nil
}

func (s *IntakeService) targetBatch(ctx context.Context, repos TransactionalRepositories, cmd ReceiveCommand, expiry *time.Time, uom string) (*relief.Batch, bool, error) {
	if cmd.BatchNo != nil && *cmd.BatchNo != "" {
		existing, err := repos.BatchRepo().FindByBatchNo(ctx, cmd.ItemID, cmd.WarehouseID, *cmd.BatchNo)
		switch {
		case err == nil:
			locked, err := repos.BatchRepo().FindByIDForUpdate(ctx, existing.ID)
			return locked, false, err
		case !isNotFound(err):
			return nil, false, err
		}
	}
	return relief.NewBatch(cmd.ItemID, cmd.WarehouseID, cmd.BatchNo, cmd.BatchDate, expiry, uom), true, nil
}

func notFoundAs(err error, kind string, id uuid.UUID) error {
	if isNotFound(err) {
		return shared.NewDomainError(shared.ErrNotFound.Code, fmt.Sprintf("%s %s not found", kind, id))
	}
	return err
}
