package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDaysLeft_FloorsDivision verifies daysLeft == floor(remaining/dailyUsage) for positive usage.
func TestDaysLeft_FloorsDivision(t *testing.T) {
	for remaining := 0; remaining <= 120; remaining += 7 {
		for usage := 1; usage <= 13; usage++ {
			days, ok := DaysLeft(remaining, usage)
			require.True(t, ok)
			assert.Equal(t, remaining/usage, days, "remaining=%d usage=%d", remaining, usage)
			assert.GreaterOrEqual(t, days, 0)
		}
	}
}

// TestDaysLeft_NegativeRemaining never projects negative days.
func TestDaysLeft_NegativeRemaining(t *testing.T) {
	days, ok := DaysLeft(-30, 10)
	assert.True(t, ok)
	assert.Equal(t, 0, days)
}

// TestDaysLeft_ZeroUsageIsUnknown verifies the explicit policy for zero daily usage.
func TestDaysLeft_ZeroUsageIsUnknown(t *testing.T) {
	_, ok := DaysLeft(100, 0)
	assert.False(t, ok)

	_, ok = DaysLeft(100, -5)
	assert.False(t, ok)

	view := NewProductView(Product{Remaining: 100, DailyUsage: 0}, SyncSaved)
	assert.Nil(t, view.DaysLeft)
}

func TestEndDate(t *testing.T) {
	cases := []struct {
		name     string
		purchase string
		volume   int
		usage    int
		want     string
	}{
		{name: "same month", purchase: "01.01.2024", volume: 100, usage: 10, want: "11.01.2024"},
		{name: "month rollover", purchase: "25.01.2024", volume: 100, usage: 10, want: "04.02.2024"},
		{name: "leap year", purchase: "20.02.2024", volume: 100, usage: 10, want: "01.03.2024"},
		{name: "non leap year", purchase: "20.02.2023", volume: 100, usage: 10, want: "02.03.2023"},
		{name: "year rollover", purchase: "28.12.2023", volume: 50, usage: 10, want: "02.01.2024"},
		{name: "floored supply", purchase: "01.01.2024", volume: 109, usage: 10, want: "11.01.2024"},
		{name: "zero volume", purchase: "15.06.2024", volume: 0, usage: 10, want: "15.06.2024"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EndDate(tc.purchase, tc.volume, tc.usage)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestEndDate_Rejects verifies malformed input fails with a validation error.
func TestEndDate_Rejects(t *testing.T) {
	cases := []struct {
		name     string
		purchase string
		volume   int
		usage    int
		field    string
	}{
		{name: "iso format", purchase: "2024-01-01", volume: 100, usage: 10, field: "purchaseDate"},
		{name: "impossible day", purchase: "30.02.2024", volume: 100, usage: 10, field: "purchaseDate"},
		{name: "unpadded", purchase: "1.1.2024", volume: 100, usage: 10, field: "purchaseDate"},
		{name: "zero usage", purchase: "01.01.2024", volume: 100, usage: 0, field: "dailyUsage"},
		{name: "negative usage", purchase: "01.01.2024", volume: 100, usage: -1, field: "dailyUsage"},
		{name: "negative volume", purchase: "01.01.2024", volume: -1, usage: 10, field: "volume"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EndDate(tc.purchase, tc.volume, tc.usage)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}
