package services

import (
	"fmt"
	"time"

	"github.com/prudhvinik1/livesync/internal/repositories"
)

const dateLayout = "2006-01-02"

// BudgetPeriod returns the first and last day of a budget period that
// starts at the beginning of the month containing now. Dates are
// formatted as YYYY-MM-DD.
func BudgetPeriod(period string, now time.Time) (string, string, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var end time.Time
	switch period {
	case "monthly":
		end = start.AddDate(0, 1, 0)
	case "quarterly":
		end = start.AddDate(0, 3, 0)
	case "yearly":
		end = start.AddDate(1, 0, 0)
	default:
		return "", "", fmt.Errorf("%w: invalid budget period %q", repositories.ErrInvalidRow, period)
	}
	end = end.AddDate(0, 0, -1)

	return start.Format(dateLayout), end.Format(dateLayout), nil
}
