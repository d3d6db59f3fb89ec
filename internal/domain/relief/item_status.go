package relief

import (
	"fmt"
	"strings"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Relief request item status codes.
const (
	ItemStatusRequested   = "R"
	ItemStatusUnavailable = "U"
	ItemStatusDenied      = "D"
	ItemStatusAwaiting    = "W"
	ItemStatusPartlyFill  = "P"
	ItemStatusLimit       = "L"
	ItemStatusFilled      = "F"
)

// RequestItemStatus is one row of the item status reference table.
type RequestItemStatus struct {
	Code        string
	Description string
	QtyRule     string
	Active      bool
}

// ComputeAllowedStatuses derives the automatic status of a request item from
// its allocation state, together with the codes an operator may pick.
// The allowed list is not filtered against the active status set; callers
// that own the status table do that.
func ComputeAllowedStatuses(totalAllocated, requestedQty decimal.Decimal, hasActivity bool) (string, []string) {
	switch {
	case totalAllocated.IsZero() && !hasActivity:
		return ItemStatusRequested, []string{ItemStatusRequested, ItemStatusUnavailable, ItemStatusDenied, ItemStatusAwaiting}
	case totalAllocated.IsZero():
		return ItemStatusUnavailable, []string{ItemStatusUnavailable, ItemStatusDenied, ItemStatusAwaiting}
	case totalAllocated.Equal(requestedQty):
		return ItemStatusFilled, []string{ItemStatusFilled}
	case totalAllocated.LessThan(requestedQty):
		return ItemStatusPartlyFill, []string{ItemStatusPartlyFill, ItemStatusLimit}
	default:
		return ItemStatusFilled, []string{ItemStatusFilled}
	}
}

// NewInvalidTransitionError explains which statuses an item may move to.
// labels renders a code for humans.
func NewInvalidTransitionError(itemID uuid.UUID, newStatus string, allowed []string, totalAllocated, requestedQty decimal.Decimal, labels func(string) string) *shared.DomainError {
	names := make([]string, 0, len(allowed))
	for _, code := range allowed {
		names = append(names, labels(code))
	}
	allowedStr := strings.Join(names, ", ")

	var kind string
	switch {
	case totalAllocated.IsZero():
		kind = "With zero allocation, status must be one of"
	case totalAllocated.GreaterThanOrEqual(requestedQty):
		kind = "Fully allocated items must be"
	default:
		kind = "Partially allocated items must be"
	}
	return shared.NewDomainError(CodeInvalidStatusTransition,
		fmt.Sprintf("Item #%s: %s: %s (not %s)", itemID, kind, allowedStr, labels(newStatus)))
}

// ValidateQuantityLimit rejects allocations above the requested quantity.
func ValidateQuantityLimit(itemID uuid.UUID, totalAllocated, requestedQty decimal.Decimal) error {
	if totalAllocated.GreaterThan(requestedQty) {
		return shared.NewDomainError(CodeQuantityLimitExceeded, fmt.Sprintf(
			"Item #%s: Total allocated (%s) exceeds requested quantity (%s)",
			itemID, totalAllocated.String(), requestedQty.String()))
	}
	return nil
}
