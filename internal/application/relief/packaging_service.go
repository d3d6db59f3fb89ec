package relief

import (
	"context"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PackagingService drives a relief package from draft to dispatch and keeps
// reservations equal to the package lines. Drafts are edited under the
// preparer's fulfillment lock; submitting hands the package over and drops it.
type PackagingService struct {
	tx       txRunner
	packages relief.PackageRepository
	ledger   *ReservationLedger
	locks    *FulfillmentLockService
	eventBus shared.EventPublisher
	clock    func() time.Time
	logger   *zap.Logger
}

// PackagingOption configures a PackagingService
type PackagingOption func(*PackagingService)

// WithPackagingClock overrides the clock stamped on dispatch.
func WithPackagingClock(now func() time.Time) PackagingOption {
	return func(s *PackagingService) {
		s.clock = now
	}
}

// WithEventPublisher sets the publisher for package events.
func WithEventPublisher(publisher shared.EventPublisher) PackagingOption {
	return func(s *PackagingService) {
		s.eventBus = publisher
	}
}

// NewPackagingService creates a new PackagingService
func NewPackagingService(
	txScope TransactionScope,
	packages relief.PackageRepository,
	ledger *ReservationLedger,
	locks *FulfillmentLockService,
	logger *zap.Logger,
	opts ...PackagingOption,
) *PackagingService {
	s := &PackagingService{
		tx:       txRunner{scope: txScope, service: "packaging", logger: logger},
		packages: packages,
		ledger:   ledger,
		locks:    locks,
		clock:    time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveDraftCommand replaces the allocation lines of a request's package.
type SaveDraftCommand struct {
	RequestID uuid.UUID
	User      relief.LockHolder
	Lines     []relief.AllocationLine
	// ExpectedVersion guards against overwriting someone else's save. Zero
	// skips the check.
	ExpectedVersion int
	Reason          string
}

// SaveDraft stores the lines as the package draft and reserves the
// difference to what was held before. The fulfillment lock is taken if the
// user does not hold it yet.
func (s *PackagingService) SaveDraft(ctx context.Context, cmd SaveDraftCommand) (*relief.ReliefPackage, error) {
	for _, line := range cmd.Lines {
		if line.Quantity.IsNegative() {
			return nil, shared.NewDomainError(relief.CodeInvalidQuantity, "Allocated quantity must not be negative")
		}
	}
	if _, err := s.locks.Acquire(ctx, cmd.RequestID, cmd.User); err != nil {
		return nil, err
	}

	var saved *relief.ReliefPackage
	err := s.tx.run(ctx, "save_draft", func(ctx context.Context, repos TransactionalRepositories) error {
		if _, err := s.locks.requireHeld(ctx, repos, cmd.RequestID, cmd.User.UserID); err != nil {
			return err
		}

		pkg, isNew, err := openPackage(ctx, repos, cmd.RequestID)
		if err != nil {
			return err
		}
		if !isNew {
			if err := checkVersion(pkg, cmd.ExpectedVersion); err != nil {
				return err
			}
		}

		old := pkg.BatchQuantities()
		if err := pkg.SaveDraft(); err != nil {
			return err
		}
		if err := s.ledger.apply(ctx, repos, pkg, isNew, cmd.Lines, old, cmd.Reason); err != nil {
			return err
		}
		saved = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Relief package draft saved",
		zap.String("relief_request_id", cmd.RequestID.String()),
		zap.String("package_id", saved.ID.String()),
		zap.Int("lines", len(saved.Allocations)),
	)
	return saved, nil
}

// Submit sends the draft for approval and drops the preparer's fulfillment
// lock. Reservations stay until the package is dispatched or cancelled.
func (s *PackagingService) Submit(ctx context.Context, requestID, userID uuid.UUID, expectedVersion int) (*relief.ReliefPackage, error) {
	return s.transition(ctx, "submit", requestID, expectedVersion, func(ctx context.Context, repos TransactionalRepositories, pkg *relief.ReliefPackage) error {
		lock, err := s.locks.requireHeld(ctx, repos, requestID, userID)
		if err != nil {
			return err
		}
		if err := pkg.Submit(); err != nil {
			return err
		}
		return repos.LockRepo().Delete(ctx, lock.ID)
	})
}

// Dispatch commits the submitted package: reserved stock is deducted for
// good and any fulfillment lock left on the request is dropped. Only a live
// lock of another user blocks it.
func (s *PackagingService) Dispatch(ctx context.Context, requestID, userID uuid.UUID, expectedVersion int) (*relief.ReliefPackage, error) {
	return s.transition(ctx, "dispatch", requestID, expectedVersion, func(ctx context.Context, repos TransactionalRepositories, pkg *relief.ReliefPackage) error {
		lock, err := s.locks.unblocked(ctx, repos, requestID, userID)
		if err != nil {
			return err
		}
		if err := s.ledger.commit(ctx, repos, pkg, s.clock()); err != nil {
			return err
		}
		return dropLock(ctx, repos, lock)
	})
}

// Cancel abandons the package, gives back its reservations and drops the
// fulfillment lock. A draft can only be cancelled by its lock holder; a
// submitted package by anyone not blocked by another user's live lock.
func (s *PackagingService) Cancel(ctx context.Context, requestID, userID uuid.UUID, expectedVersion int) (*relief.ReliefPackage, error) {
	return s.transition(ctx, "cancel", requestID, expectedVersion, func(ctx context.Context, repos TransactionalRepositories, pkg *relief.ReliefPackage) error {
		var lock *relief.FulfillmentLock
		var err error
		if pkg.Status == relief.PackageDraft {
			lock, err = s.locks.requireHeld(ctx, repos, requestID, userID)
		} else {
			lock, err = s.locks.unblocked(ctx, repos, requestID, userID)
		}
		if err != nil {
			return err
		}
		if err := pkg.Cancel(); err != nil {
			return err
		}
		if err := s.ledger.release(ctx, repos, pkg); err != nil {
			return err
		}
		return dropLock(ctx, repos, lock)
	})
}

// GetPackage returns the most recent package of a request.
func (s *PackagingService) GetPackage(ctx context.Context, requestID uuid.UUID) (*relief.ReliefPackage, error) {
	pkg, err := s.packages.FindLatestByRequest(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, relief.NewPackageNotFoundError(requestID)
		}
		return nil, err
	}
	return pkg, nil
}

// transition loads the open package under lock, applies step and persists
// the result. Domain events are published after commit.
func (s *PackagingService) transition(
	ctx context.Context,
	op string,
	requestID uuid.UUID,
	expectedVersion int,
	step func(ctx context.Context, repos TransactionalRepositories, pkg *relief.ReliefPackage) error,
) (*relief.ReliefPackage, error) {
	var result *relief.ReliefPackage
	err := s.tx.run(ctx, op, func(ctx context.Context, repos TransactionalRepositories) error {
		pkg, err := repos.PackageRepo().FindActiveByRequestForUpdate(ctx, requestID)
		if err != nil {
			if isNotFound(err) {
				return relief.NewPackageNotFoundError(requestID)
			}
			return err
		}
		if err := checkVersion(pkg, expectedVersion); err != nil {
			return err
		}
		if err := step(ctx, repos, pkg); err != nil {
			return err
		}
		if err := repos.PackageRepo().Update(ctx, pkg); err != nil {
			return err
		}
		result = pkg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Relief package transitioned",
		zap.String("operation", op),
		zap.String("relief_request_id", requestID.String()),
		zap.String("status", string(result.Status)),
	)
	s.publish(ctx, result)
	return result, nil
}

func (s *PackagingService) publish(ctx context.Context, pkg *relief.ReliefPackage) {
	events := pkg.PullDomainEvents()
	if s.eventBus == nil || len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish package events",
			zap.String("package_id", pkg.ID.String()),
			zap.Error(err),
		)
	}
}

func dropLock(ctx context.Context, repos TransactionalRepositories, lock *relief.FulfillmentLock) error {
	if lock == nil {
		return nil
	}
	return repos.LockRepo().Delete(ctx, lock.ID)
}

func checkVersion(pkg *relief.ReliefPackage, expected int) error {
	if expected > 0 && pkg.Version != expected {
		return shared.NewDomainError(shared.ErrOptimisticLock.Code,
			"Package was modified by another user, reload and try again")
	}
	return nil
}
