package models

import (
	"fmt"
	"time"
)

// DateLayout is the DD.MM.YYYY format used for purchase and end dates.
const DateLayout = "02.01.2006"

// CriticalPercent is the share of the volume below which stock is critical.
const CriticalPercent = 20

// DaysLeft returns max(0, floor(remaining/dailyUsage)). A non-positive daily usage
// has no finite projection and reports ok=false.
func DaysLeft(remaining, dailyUsage int) (int, bool) {
	if dailyUsage <= 0 {
		return 0, false
	}
	if remaining <= 0 {
		return 0, true
	}
	return remaining / dailyUsage, true
}

// ParseDate parses a DD.MM.YYYY string into a calendar date in UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be a valid DD.MM.YYYY date: %w", value, err)
	}
	return t, nil
}

// EndDate projects the day the purchased volume runs out at the given daily usage.
func EndDate(purchaseDate string, volume, dailyUsage int) (string, error) {
	start, err := ParseDate(purchaseDate)
	if err != nil {
		return "", NewValidationError("purchaseDate", "enter the date as DD.MM.YYYY")
	}
	if volume < 0 {
		return "", NewValidationError("volume", "volume must not be negative")
	}
	if dailyUsage <= 0 {
		return "", NewValidationError("dailyUsage", "daily usage must be a positive number")
	}

	daysSupply := volume / dailyUsage
	return start.AddDate(0, 0, daysSupply).Format(DateLayout), nil
}
