package relief

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillmentLock(t *testing.T) {
	holder := LockHolder{UserID: uuid.New(), Name: "Jo Packer", Email: "jo@example.org"}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	lock := NewFulfillmentLock(uuid.New(), holder, now, 24*time.Hour)

	require.NotNil(t, lock.ExpiresAt)
	assert.True(t, lock.HeldBy(holder.UserID))
	assert.False(t, lock.HeldBy(uuid.New()))
	assert.False(t, lock.IsExpired(now.Add(23*time.Hour)))
	assert.True(t, lock.IsExpired(now.Add(25*time.Hour)))
	assert.Equal(t, "Jo Packer", lock.Holder().DisplayName())

	forever := NewFulfillmentLock(uuid.New(), holder, now, 0)
	assert.Nil(t, forever.ExpiresAt)
	assert.False(t, forever.IsExpired(now.Add(1000*time.Hour)))
}

func TestLockHolder_DisplayName(t *testing.T) {
	assert.Equal(t, "jo@example.org", LockHolder{Email: "jo@example.org"}.DisplayName())
	assert.Equal(t, "another user", LockHolder{}.DisplayName())
}
