package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/livesync/internal/repositories"
)

func TestBudgetPeriod(t *testing.T) {
	now := time.Date(2024, time.February, 17, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		period    string
		wantStart string
		wantEnd   string
	}{
		{"monthly", "2024-02-01", "2024-02-29"},
		{"quarterly", "2024-02-01", "2024-04-30"},
		{"yearly", "2024-02-01", "2025-01-31"},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			start, end, err := BudgetPeriod(tt.period, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestBudgetPeriod_CrossesYear(t *testing.T) {
	start, end, err := BudgetPeriod("quarterly", time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "2024-11-01", start)
	assert.Equal(t, "2025-01-31", end)
}

func TestBudgetPeriod_RejectsUnknownPeriod(t *testing.T) {
	_, _, err := BudgetPeriod("weekly", time.Now())

	assert.ErrorIs(t, err, repositories.ErrInvalidRow)
	assert.Contains(t, err.Error(), "weekly")
}
