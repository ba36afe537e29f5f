package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

func product(id int64, remaining, usage int) models.Product {
	return models.Product{ID: models.ProductID(id), Name: "Coffee", Volume: 1000, Remaining: remaining, DailyUsage: usage, AutoTracking: true}
}

// TestEvaluate_OneSignalPerPass verifies remaining=40, usage=10 raises exactly one signal.
func TestEvaluate_OneSignalPerPass(t *testing.T) {
	e := NewEvaluator(PolicyEveryChange, 5)

	signals := e.Evaluate("u1", models.CollectionSavedProducts, []models.Product{product(1, 40, 10)}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, 4, signals[0].DaysLeft)
	assert.Contains(t, signals[0].Notification().Body, "4 day(s)")
}

// TestEvaluate_Window checks the (0, threshold] boundaries and the unknown projection.
func TestEvaluate_Window(t *testing.T) {
	e := NewEvaluator(PolicyEveryChange, 5)

	products := []models.Product{
		product(1, 0, 10),  // 0 days: depleted, not low
		product(2, 9, 10),  // 0 days
		product(3, 10, 10), // 1 day
		product(4, 59, 10), // 5 days
		product(5, 60, 10), // 6 days
		product(6, 40, 0),  // unknown
	}

	signals := e.Evaluate("u1", models.CollectionProducts, products, false)
	ids := make([]models.ProductID, 0, len(signals))
	for _, s := range signals {
		ids = append(ids, s.Product.ID)
	}
	assert.Equal(t, []models.ProductID{3, 4}, ids)
}

// TestEvaluate_EveryChangeRepeats reproduces the nagging behaviour.
func TestEvaluate_EveryChangeRepeats(t *testing.T) {
	e := NewEvaluator(PolicyEveryChange, 5)
	products := []models.Product{product(1, 40, 10)}

	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, products, false), 1)
	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, products, false), 1)
}

// TestEvaluate_OnceDeduplicatesUntilRecovered warns once, then again after the record recovers and drops.
func TestEvaluate_OnceDeduplicatesUntilRecovered(t *testing.T) {
	e := NewEvaluator(PolicyOnce, 5)

	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, []models.Product{product(1, 40, 10)}, false), 1)
	assert.Empty(t, e.Evaluate("u1", models.CollectionProducts, []models.Product{product(1, 30, 10)}, false))

	// restocked out of the window
	assert.Empty(t, e.Evaluate("u1", models.CollectionProducts, []models.Product{product(1, 500, 10)}, false))
	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, []models.Product{product(1, 20, 10)}, false), 1)
}

// TestEvaluate_ScopesAreIndependent keeps collections and users apart.
func TestEvaluate_ScopesAreIndependent(t *testing.T) {
	e := NewEvaluator(PolicyOnce, 5)
	products := []models.Product{product(1, 40, 10)}

	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, products, false), 1)
	assert.Len(t, e.Evaluate("u1", models.CollectionSavedProducts, products, false), 1)
	assert.Len(t, e.Evaluate("u2", models.CollectionProducts, products, false), 1)

	e.Forget("u1")
	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, products, false), 1)
	assert.Empty(t, e.Evaluate("u2", models.CollectionProducts, products, false))
}

// TestEvaluate_TrackedOnly skips records without auto tracking.
func TestEvaluate_TrackedOnly(t *testing.T) {
	e := NewEvaluator(PolicyEveryChange, 5)
	untracked := product(1, 40, 10)
	untracked.AutoTracking = false

	assert.Empty(t, e.Evaluate("u1", models.CollectionProducts, []models.Product{untracked}, true))
	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, []models.Product{untracked}, false), 1)
}

// TestEvaluate_DuplicateRecords signals once even when the store holds duplicates.
func TestEvaluate_DuplicateRecords(t *testing.T) {
	e := NewEvaluator(PolicyEveryChange, 5)
	p := product(1, 40, 10)

	assert.Len(t, e.Evaluate("u1", models.CollectionProducts, []models.Product{p, p}, false), 1)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" ONCE ")
	require.NoError(t, err)
	assert.Equal(t, PolicyOnce, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
