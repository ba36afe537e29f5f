package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConsumeRestock_RoundTrip verifies equal consume and restock restore the stock.
func TestConsumeRestock_RoundTrip(t *testing.T) {
	p := Product{Volume: 500, Remaining: 300}

	_, err := p.Consume(120)
	require.NoError(t, err)
	assert.Equal(t, 180, p.Remaining)

	_, err = p.Restock(120)
	require.NoError(t, err)
	assert.Equal(t, 300, p.Remaining)
}

// TestConsume_SaturatesAtZero verifies depletion is clamped and signalled.
func TestConsume_SaturatesAtZero(t *testing.T) {
	p := Product{Volume: 250, Remaining: 50}

	change, err := p.Consume(80)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Remaining)
	assert.Equal(t, StockChange{Before: 50, After: 0, Depleted: true, Critical: false}, change)
}

// TestRestock_SaturatesAtVolume verifies restock never exceeds the volume.
func TestRestock_SaturatesAtVolume(t *testing.T) {
	p := Product{Volume: 200, Remaining: 150}

	change, err := p.Restock(500)
	require.NoError(t, err)
	assert.Equal(t, 200, p.Remaining)
	assert.Equal(t, 150, change.Before)
	assert.Equal(t, 200, change.After)
}

// TestConsume_CriticalCrossing fires only when crossing below 20% of volume.
func TestConsume_CriticalCrossing(t *testing.T) {
	p := Product{Volume: 1000, Remaining: 250}

	change, err := p.Consume(50)
	require.NoError(t, err)
	assert.False(t, change.Critical, "200 is exactly 20%%, not below")

	change, err = p.Consume(1)
	require.NoError(t, err)
	assert.True(t, change.Critical)

	change, err = p.Consume(1)
	require.NoError(t, err)
	assert.False(t, change.Critical, "already critical, no new crossing")
}

// TestConsume_CriticalAndDepletedTogether covers a single large consumption.
func TestConsume_CriticalAndDepletedTogether(t *testing.T) {
	p := Product{Volume: 100, Remaining: 100}

	change, err := p.Consume(100)
	require.NoError(t, err)
	assert.True(t, change.Depleted)
	assert.True(t, change.Critical)
}

// TestStock_RejectsNonPositiveAmounts verifies amount validation.
func TestStock_RejectsNonPositiveAmounts(t *testing.T) {
	p := Product{Volume: 100, Remaining: 40}

	_, err := p.Consume(0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = p.Restock(-3)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 40, p.Remaining)
}

func TestProductApply_ClampsRemaining(t *testing.T) {
	p := Product{ID: 42, UserID: "u1", Volume: 500, Remaining: 400}

	updated := p.Apply(ProductFields{Name: "Arabica", Category: CategoryCoffee, Volume: 300, DailyUsage: 15, PurchaseDate: "01.01.2024", EndDate: "21.01.2024"})

	assert.Equal(t, ProductID(42), updated.ID)
	assert.Equal(t, "u1", updated.UserID)
	assert.Equal(t, 300, updated.Remaining)
	assert.Equal(t, "Arabica", updated.Name)
}

func TestIsCritical_MatchesPercentage(t *testing.T) {
	for _, tc := range []struct {
		remaining, volume int
		want              bool
	}{
		{199, 1000, true},
		{200, 1000, false},
		{0, 1, true},
		{1, 1, false},
		{1, 7, true},
		{2, 7, false},
		{19, 99, true},
		{20, 99, false},
		{math.MaxInt / 5, math.MaxInt, true},
		{math.MaxInt, math.MaxInt, false},
	} {
		assert.Equal(t, tc.want, isCritical(tc.remaining, tc.volume), "%d/%d", tc.remaining, tc.volume)
	}
}

// TestStock_HugeValuesDoNotOverflow keeps remaining in [0, volume] at the int limits.
func TestStock_HugeValuesDoNotOverflow(t *testing.T) {
	p := Product{Name: "Rice", Volume: math.MaxInt, Remaining: math.MaxInt}

	change, err := p.Consume(math.MaxInt - math.MaxInt/10)
	require.NoError(t, err)
	assert.True(t, change.Critical)
	assert.Equal(t, math.MaxInt/10, p.Remaining)

	_, err = p.Restock(math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, p.Remaining)
}
