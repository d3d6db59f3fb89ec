package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseAggregateRoot(t *testing.T) {
	root := NewBaseAggregateRoot()

	assert.NotEqual(t, uuid.Nil, root.GetID())
	assert.Equal(t, 1, root.GetVersion())
	assert.Equal(t, root.CreatedAt, root.UpdatedAt)
	assert.Equal(t, "UTC", root.CreatedAt.Location().String())

	root.IncrementVersion()
	assert.Equal(t, 2, root.GetVersion())
}

func TestBaseAggregateRoot_PullDomainEvents(t *testing.T) {
	root := NewBaseAggregateRoot()
	evt := NewBaseDomainEvent("PackageSubmitted", "ReliefPackage", root.ID)
	root.AddDomainEvent(&evt)

	require.Len(t, root.GetDomainEvents(), 1)
	pulled := root.PullDomainEvents()
	require.Len(t, pulled, 1)
	assert.Equal(t, "PackageSubmitted", pulled[0].EventType())
	assert.Equal(t, root.ID, pulled[0].AggregateID())
	assert.Empty(t, root.PullDomainEvents())
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("reserve batch: %w", NewDomainError("INSUFFICIENT_STOCK", "only 3 left"))

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrNotFound)

	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "only 3 left", de.Error())
}
