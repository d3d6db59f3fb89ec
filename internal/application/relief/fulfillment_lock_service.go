package relief

import (
	"context"
	"errors"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLockExpiration is how long a fulfillment lock lives unless configured.
const DefaultLockExpiration = 24 * time.Hour

// FulfillmentLockService grants the exclusive right to prepare a relief
// request. Expired locks are swept lazily whenever they are touched, together
// with the reservations of the draft they guarded. A submitted package holds
// no lock and keeps its reservations.
type FulfillmentLockService struct {
	tx     txRunner
	locks  relief.FulfillmentLockRepository
	ledger *ReservationLedger
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// LockServiceOption configures a FulfillmentLockService
type LockServiceOption func(*FulfillmentLockService)

// WithLockExpiration sets the lock lifetime. Zero or less means locks never
// expire.
func WithLockExpiration(ttl time.Duration) LockServiceOption {
	return func(s *FulfillmentLockService) {
		s.ttl = ttl
	}
}

// WithLockClock overrides the clock used for expiry decisions.
func WithLockClock(now func() time.Time) LockServiceOption {
	return func(s *FulfillmentLockService) {
		s.clock = now
	}
}

// NewFulfillmentLockService creates a new FulfillmentLockService
func NewFulfillmentLockService(
	txScope TransactionScope,
	locks relief.FulfillmentLockRepository,
	ledger *ReservationLedger,
	logger *zap.Logger,
	opts ...LockServiceOption,
) *FulfillmentLockService {
	s := &FulfillmentLockService{
		tx:     txRunner{scope: txScope, service: "fulfillment_lock", logger: logger},
		locks:  locks,
		ledger: ledger,
		ttl:    DefaultLockExpiration,
		clock:  time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AcquireResult is the outcome of Acquire.
type AcquireResult struct {
	Lock        *relief.FulfillmentLock
	AlreadyHeld bool
}

// Acquire takes the lock on requestID for holder.
func (s *FulfillmentLockService) Acquire(ctx context.Context, requestID uuid.UUID, holder relief.LockHolder) (*AcquireResult, error) {
	var result *AcquireResult
	err := s.tx.run(ctx, "acquire", func(ctx context.Context, repos TransactionalRepositories) error {
		now := s.now()
		existing, err := s.current(ctx, repos, requestID, now)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.HeldBy(holder.UserID) {
				result = &AcquireResult{Lock: existing, AlreadyHeld: true}
				return nil
			}
			return relief.NewLockHeldError(existing.Holder().DisplayName())
		}

		lock := relief.NewFulfillmentLock(requestID, holder, now, s.ttl)
		if err := repos.LockRepo().Create(ctx, lock); err != nil {
			return err
		}
		result = &AcquireResult{Lock: lock}
		return nil
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		// Lost a race with a concurrent acquire; report whoever won.
		return s.resolveConflict(ctx, requestID, holder)
	}
	if err != nil {
		return nil, err
	}

	if !result.AlreadyHeld {
		s.logger.Info("Fulfillment lock acquired",
			zap.String("relief_request_id", requestID.String()),
			zap.String("user_id", holder.UserID.String()),
		)
	}
	return result, nil
}

func (s *FulfillmentLockService) resolveConflict(ctx context.Context, requestID uuid.UUID, holder relief.LockHolder) (*AcquireResult, error) {
	lock, err := s.locks.FindByRequest(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, relief.NewLockHeldError(relief.LockHolder{}.DisplayName())
		}
		return nil, relief.NewDatabaseError("acquire")
	}
	if lock.HeldBy(holder.UserID) {
		return &AcquireResult{Lock: lock, AlreadyHeld: true}, nil
	}
	return nil, relief.NewLockHeldError(lock.Holder().DisplayName())
}

// LockStatus tells a user whether they may edit a request.
type LockStatus struct {
	CanEdit      bool
	BlockingUser string
	Lock         *relief.FulfillmentLock
}

// Check reports whether userID may edit requestID.
func (s *FulfillmentLockService) Check(ctx context.Context, requestID, userID uuid.UUID) (*LockStatus, error) {
	status := &LockStatus{CanEdit: true}
	err := s.tx.run(ctx, "check", func(ctx context.Context, repos TransactionalRepositories) error {
		lock, err := s.current(ctx, repos, requestID, s.now())
		if err != nil || lock == nil {
			return err
		}
		status.Lock = lock
		if !lock.HeldBy(userID) {
			status.CanEdit = false
			status.BlockingUser = lock.Holder().DisplayName()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ReleaseOptions controls Release.
type ReleaseOptions struct {
	// Force allows releasing another user's lock.
	Force bool
	// ReleaseReservations also gives back what the draft package holds.
	ReleaseReservations bool
}

// ReleaseResult is the outcome of Release.
type ReleaseResult struct {
	Released bool
	Message  string
}

// Release drops the lock on requestID.
func (s *FulfillmentLockService) Release(ctx context.Context, requestID, userID uuid.UUID, opts ReleaseOptions) (*ReleaseResult, error) {
	result := &ReleaseResult{}
	err := s.tx.run(ctx, "release", func(ctx context.Context, repos TransactionalRepositories) error {
		lock, err := repos.LockRepo().FindByRequestForUpdate(ctx, requestID)
		if err != nil {
			if isNotFound(err) {
				result.Message = "No lock exists"
				return nil
			}
			return err
		}
		if !lock.HeldBy(userID) && !opts.Force {
			return shared.NewDomainError(relief.CodeLockNotHeld, "You cannot release another user's lock")
		}
		if opts.ReleaseReservations {
			if err := s.ledger.releaseDraft(ctx, repos, requestID); err != nil {
				return err
			}
		}
		if err := repos.LockRepo().Delete(ctx, lock.ID); err != nil {
			return err
		}
		result.Released = true
		result.Message = "Lock released successfully"
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CleanupStats summarises one CleanupExpired run.
type CleanupStats struct {
	TotalExpired    int       `json:"total_expired"`
	SuccessReleased int       `json:"success_released"`
	FailedReleases  int       `json:"failed_releases"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// CleanupExpired removes every expired lock and releases the reservations of
// the draft it guarded.
// Each lock is swept in its own transaction so one failure does not block the
// rest.
func (s *FulfillmentLockService) CleanupExpired(ctx context.Context) (*CleanupStats, error) {
	now := s.now()
	stats := &CleanupStats{ProcessedAt: now}

	expired, err := s.locks.FindExpired(ctx, now)
	if err != nil {
		s.logger.Error("Failed to find expired fulfillment locks", zap.Error(err))
		return nil, relief.NewDatabaseError("cleanup_expired")
	}
	stats.TotalExpired = len(expired)
	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired fulfillment locks found")
		return stats, nil
	}

	for _, lock := range expired {
		err := s.tx.run(ctx, "cleanup_expired", func(ctx context.Context, repos TransactionalRepositories) error {
			_, err := s.current(ctx, repos, lock.ReliefRequestID, now)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to release expired fulfillment lock",
				zap.String("lock_id", lock.ID.String()),
				zap.String("relief_request_id", lock.ReliefRequestID.String()),
				zap.Error(err),
			)
			stats.FailedReleases++
			continue
		}
		stats.SuccessReleased++
	}

	s.logger.Info("Completed expired fulfillment lock cleanup",
		zap.Int("total", stats.TotalExpired),
		zap.Int("released", stats.SuccessReleased),
		zap.Int("failed", stats.FailedReleases),
	)
	return stats, nil
}

// current returns the live lock on requestID, sweeping it first if it has
// expired. A nil lock means the request is free.
func (s *FulfillmentLockService) current(ctx context.Context, repos TransactionalRepositories, requestID uuid.UUID, now time.Time) (*relief.FulfillmentLock, error) {
	lock, err := repos.LockRepo().FindByRequestForUpdate(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !lock.IsExpired(now) {
		return lock, nil
	}

	if err := s.ledger.releaseDraft(ctx, repos, requestID); err != nil {
		return nil, err
	}
	if err := repos.LockRepo().Delete(ctx, lock.ID); err != nil {
		return nil, err
	}
	s.logger.Info("Expired fulfillment lock swept",
		zap.String("relief_request_id", requestID.String()),
		zap.String("user_id", lock.UserID.String()),
	)
	return nil, nil
}

// requireHeld fails unless userID holds a live lock on requestID.
func (s *FulfillmentLockService) requireHeld(ctx context.Context, repos TransactionalRepositories, requestID, userID uuid.UUID) (*relief.FulfillmentLock, error) {
	lock, err := repos.LockRepo().FindByRequestForUpdate(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewDomainError(relief.CodeLockNotHeld, "You do not hold the fulfillment lock for this request")
		}
		return nil, err
	}
	if lock.IsExpired(s.now()) {
		return nil, shared.NewDomainError(relief.CodeLockNotHeld, "Your fulfillment lock has expired")
	}
	if !lock.HeldBy(userID) {
		return nil, relief.NewLockHeldError(lock.Holder().DisplayName())
	}
	return lock, nil
}

// unblocked returns whatever lock sits on requestID, or nil, and fails only
// when another user holds it live. Expired locks are returned unswept.
func (s *FulfillmentLockService) unblocked(ctx context.Context, repos TransactionalRepositories, requestID, userID uuid.UUID) (*relief.FulfillmentLock, error) {
	lock, err := repos.LockRepo().FindByRequestForUpdate(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !lock.HeldBy(userID) && !lock.IsExpired(s.now()) {
		return nil, relief.NewLockHeldError(lock.Holder().DisplayName())
	}
	return lock, nil
}

func (s *FulfillmentLockService) now() time.Time {
	return s.clock().UTC()
}
