package relief

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeAllowedStatuses(t *testing.T) {
	tests := []struct {
		name        string
		total       string
		requested   string
		activity    bool
		wantAuto    string
		wantAllowed []string
	}{
		{"initial load", "0", "10", false, "R", []string{"R", "U", "D", "W"}},
		{"after activity", "0", "10", true, "U", []string{"U", "D", "W"}},
		{"filled", "10", "10", true, "F", []string{"F"}},
		{"partial", "4", "10", true, "P", []string{"P", "L"}},
		{"over allocated", "12", "10", false, "F", []string{"F"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auto, allowed := ComputeAllowedStatuses(dec(tt.total), dec(tt.requested), tt.activity)
			assert.Equal(t, tt.wantAuto, auto)
			assert.Equal(t, tt.wantAllowed, allowed)
		})
	}
}

func TestValidateQuantityLimit(t *testing.T) {
	itemID := uuid.New()

	assert.NoError(t, ValidateQuantityLimit(itemID, dec("10"), dec("10")))
	err := ValidateQuantityLimit(itemID, dec("11"), dec("10"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Total allocated (11) exceeds requested quantity (10)")
}

func TestNewInvalidTransitionError(t *testing.T) {
	labels := func(code string) string {
		return map[string]string{"P": "PARTLY FILLED", "L": "ALLOWED LIMIT", "F": "FILLED"}[code]
	}

	err := NewInvalidTransitionError(uuid.Nil, "F", []string{"P", "L"}, dec("4"), dec("10"), labels)

	assert.Equal(t, CodeInvalidStatusTransition, err.Code)
	assert.Contains(t, err.Message, "Partially allocated items must be: PARTLY FILLED, ALLOWED LIMIT (not FILLED)")

	err = NewInvalidTransitionError(uuid.Nil, "F", []string{"U"}, decimal.Zero, dec("10"), labels)
	assert.Contains(t, err.Message, "With zero allocation")
}
