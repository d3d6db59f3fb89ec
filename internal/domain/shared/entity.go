// Package shared holds the building blocks every relief aggregate uses:
// identity, optimistic versioning, domain events and coded errors.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps. Timestamps are UTC so they
// compare consistently across drivers.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity returns an entity with a fresh ID.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// GetID returns the entity ID.
func (e *BaseEntity) GetID() uuid.UUID { return e.ID }

// Versioned is implemented by anything persisted under optimistic locking.
// The persistence layer bumps the version only after a guarded update
// succeeded, so callers never increment it themselves.
type Versioned interface {
	GetID() uuid.UUID
	GetVersion() int
	IncrementVersion()
}

// BaseAggregateRoot adds a version and a queue of pending events.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	pending []DomainEvent
}

// NewBaseAggregateRoot returns a root at version 1.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// GetVersion returns the optimistic locking version.
func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

// IncrementVersion bumps the version.
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent queues event for publication after commit.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the queued events without clearing them.
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.pending }

// PullDomainEvents returns the queued events and empties the queue.
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
