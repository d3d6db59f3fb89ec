package relief

import (
	"context"
	"sort"
	"sync"

	"github.com/drims/backend/internal/domain/relief"
	"go.uber.org/zap"
)

// StatusCache holds the active item status codes in memory.
//
// It is owned by whoever constructs it; there is no package-level instance.
// The first lookup loads from the source, Reload refreshes explicitly.
type StatusCache struct {
	source relief.StatusSource
	logger *zap.Logger

	mu       sync.RWMutex
	loaded   bool
	statuses map[string]relief.RequestItemStatus
}

// StatusInvalidator is implemented by sources that keep their own copy of
// the statuses, such as a shared Redis entry. Reload drops that copy first so
// an explicit refresh always reaches the database.
type StatusInvalidator interface {
	Invalidate(ctx context.Context) error
}

// NewStatusCache creates a new StatusCache
func NewStatusCache(source relief.StatusSource, logger *zap.Logger) *StatusCache {
	return &StatusCache{
		source:   source,
		logger:   logger,
		statuses: make(map[string]relief.RequestItemStatus),
	}
}

// Reload replaces the cached statuses with a fresh read from the source.
// On error the previous contents are kept.
func (c *StatusCache) Reload(ctx context.Context) error {
	if inv, ok := c.source.(StatusInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			c.logger.Warn("Failed to invalidate shared item status cache", zap.Error(err))
		}
	}
	return c.load(ctx)
}

func (c *StatusCache) load(ctx context.Context) error {
	rows, err := c.source.LoadActive(ctx)
	if err != nil {
		c.logger.Error("Failed to load item statuses", zap.Error(err))
		return err
	}

	statuses := make(map[string]relief.RequestItemStatus, len(rows))
	for _, row := range rows {
		if row.Active {
			statuses[row.Code] = row
		}
	}

	c.mu.Lock()
	c.statuses = statuses
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("Item status cache reloaded", zap.Int("count", len(statuses)))
	return nil
}

func (c *StatusCache) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.load(ctx)
}

// Lookup returns the active status for code.
func (c *StatusCache) Lookup(ctx context.Context, code string) (relief.RequestItemStatus, bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return relief.RequestItemStatus{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.statuses[code]
	return status, ok, nil
}

// Label returns the description of code, or the code itself when unknown.
func (c *StatusCache) Label(ctx context.Context, code string) string {
	status, ok, err := c.Lookup(ctx, code)
	if err != nil || !ok || status.Description == "" {
		return code
	}
	return status.Description
}

// ActiveCodes returns every active code, sorted.
func (c *StatusCache) ActiveCodes(ctx context.Context) ([]string, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	codes := make([]string, 0, len(c.statuses))
	for code := range c.statuses {
		codes = append(codes, code)
	}
	c.mu.RUnlock()
	sort.Strings(codes)
	return codes, nil
}
