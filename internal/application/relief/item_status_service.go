package relief

import (
	"context"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllowedStatuses is the status choice for one request item.
type AllowedStatuses struct {
	AutoStatus string   `json:"auto_status"`
	Allowed    []string `json:"allowed"`
}

// StatusTransition describes a requested change of a request item's status.
type StatusTransition struct {
	ItemID         uuid.UUID
	Current        string
	New            string
	TotalAllocated decimal.Decimal
	RequestedQty   decimal.Decimal
	HasActivity    bool
}

// ItemStatusService validates request item statuses against allocation state.
type ItemStatusService struct {
	cache  *StatusCache
	logger *zap.Logger
}

// NewItemStatusService creates a new ItemStatusService
func NewItemStatusService(cache *StatusCache, logger *zap.Logger) *ItemStatusService {
	return &ItemStatusService{cache: cache, logger: logger}
}

// ComputeAllowedStatuses returns the automatic status and the active codes an
// operator may choose from.
func (s *ItemStatusService) ComputeAllowedStatuses(ctx context.Context, totalAllocated, requestedQty decimal.Decimal, hasActivity bool) (*AllowedStatuses, error) {
	auto, candidates := relief.ComputeAllowedStatuses(totalAllocated, requestedQty, hasActivity)

	allowed := make([]string, 0, len(candidates))
	for _, code := range candidates {
		_, active, err := s.cache.Lookup(ctx, code)
		if err != nil {
			return nil, err
		}
		if active {
			allowed = append(allowed, code)
		}
	}
	return &AllowedStatuses{AutoStatus: auto, Allowed: allowed}, nil
}

// ValidateStatusTransition rejects a status the allocation state does not
// allow. Keeping the current status is always accepted.
func (s *ItemStatusService) ValidateStatusTransition(ctx context.Context, t StatusTransition) error {
	if t.Current == t.New {
		return nil
	}
	result, err := s.ComputeAllowedStatuses(ctx, t.TotalAllocated, t.RequestedQty, t.HasActivity)
	if err != nil {
		return err
	}
	for _, code := range result.Allowed {
		if code == t.New {
			return nil
		}
	}
	label := func(code string) string { return s.cache.Label(ctx, code) }
	return relief.NewInvalidTransitionError(t.ItemID, t.New, result.Allowed, t.TotalAllocated, t.RequestedQty, label)
}

// ValidateQuantityLimit rejects allocating more than was requested.
func (s *ItemStatusService) ValidateQuantityLimit(itemID uuid.UUID, totalAllocated, requestedQty decimal.Decimal) error {
	return relief.ValidateQuantityLimit(itemID, totalAllocated, requestedQty)
}

// Label returns the human readable name of a status code.
func (s *ItemStatusService) Label(ctx context.Context, code string) string {
	return s.cache.Label(ctx, code)
}

// Reload refreshes the status cache.
func (s *ItemStatusService) Reload(ctx context.Context) error {
	return s.cache.Reload(ctx)
}
