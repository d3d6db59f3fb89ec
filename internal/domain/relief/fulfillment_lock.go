package relief

import (
	"time"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LockHolder identifies the user preparing a relief request.
type LockHolder struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// DisplayName is the name shown to other users who are blocked.
func (h LockHolder) DisplayName() string {
	if h.Name != "" {
		return h.Name
	}
	if h.Email != "" {
		return h.Email
	}
	return "another user"
}

// FulfillmentLock is the advisory edit lock on one relief request. At most
// one exists per request; a nil ExpiresAt never expires.
type FulfillmentLock struct {
	shared.BaseEntity
	ReliefRequestID uuid.UUID
	UserID          uuid.UUID
	UserName        string
	UserEmail       string
	AcquiredAt      time.Time
	ExpiresAt       *time.Time
}

// NewFulfillmentLock grants a lock at now. A non-positive ttl gives a lock
// that never expires.
func NewFulfillmentLock(requestID uuid.UUID, holder LockHolder, now time.Time, ttl time.Duration) *FulfillmentLock {
	now = now.UTC()
	lock := &FulfillmentLock{
		BaseEntity:      shared.NewBaseEntity(),
		ReliefRequestID: requestID,
		UserID:          holder.UserID,
		UserName:        holder.Name,
		UserEmail:       holder.Email,
		AcquiredAt:      now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		lock.ExpiresAt = &expires
	}
	return lock
}

// IsExpired reports whether the lock lapsed before now.
func (l *FulfillmentLock) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// HeldBy returns true if userID owns the lock.
func (l *FulfillmentLock) HeldBy(userID uuid.UUID) bool {
	return l.UserID == userID
}

// Holder returns the lock owner.
func (l *FulfillmentLock) Holder() LockHolder {
	return LockHolder{UserID: l.UserID, Name: l.UserName, Email: l.UserEmail}
}
