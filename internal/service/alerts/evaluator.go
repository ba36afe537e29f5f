package alerts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

var lowStockSignals = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pantry_low_stock_signals_total",
	Help: "Low-stock signals raised by evaluation passes",
}, []string{"collection"})

// Policy decides whether a record that stays low raises a signal again.
type Policy string

const (
	// PolicyEveryChange signals on every pass while the record is low.
	PolicyEveryChange Policy = "every_change"
	// PolicyOnce signals once, then stays quiet until the record leaves the low window.
	PolicyOnce Policy = "once"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case PolicyEveryChange, PolicyOnce:
		return p, nil
	default:
		return "", fmt.Errorf("unknown alert policy %q (want %q or %q)", raw, PolicyEveryChange, PolicyOnce)
	}
}

// Signal is one low-stock warning for one record.
type Signal struct {
	UserID     string
	Collection string
	Product    models.Product
	DaysLeft   int
}

// Notification renders the signal for the user.
func (s Signal) Notification() models.Notification {
	return models.Notification{
		Title: fmt.Sprintf("%s is running low", s.Product.Name),
		Body:  fmt.Sprintf("Only %d day(s) of supply left. Time to restock!", s.DaysLeft),
	}
}

// Evaluator finds records whose days-left falls in (0, threshold].
type Evaluator struct {
	policy    Policy
	threshold int

	mu     sync.Mutex
	warned map[string]map[string]struct{}
}

// NewEvaluator builds an evaluator. A non-positive threshold defaults to 5 days.
func NewEvaluator(policy Policy, thresholdDays int) *Evaluator {
	if thresholdDays <= 0 {
		thresholdDays = 5
	}
	if policy == "" {
		policy = PolicyOnce
	}
	return &Evaluator{
		policy:    policy,
		threshold: thresholdDays,
		warned:    make(map[string]map[string]struct{}),
	}
}

// IsLow reports whether a record sits in the low-stock window.
func (e *Evaluator) IsLow(p models.Product) (int, bool) {
	days, ok := p.DaysLeft()
	if !ok {
		return 0, false
	}
	return days, days > 0 && days <= e.threshold
}

// Evaluate runs one pass over a user's records in one collection and returns at
// most one signal per record. With trackedOnly set, records without autoTracking
// are skipped.
func (e *Evaluator) Evaluate(userID, collection string, products []models.Product, trackedOnly bool) []Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	scope := userID + "/" + collection
	previous := e.warned[scope]
	current := make(map[string]struct{})

	var signals []Signal
	seen := make(map[models.ProductID]struct{}, len(products))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}

		if trackedOnly && !p.AutoTracking {
			if _, ok := previous[p.ID.String()]; ok {
				current[p.ID.String()] = struct{}{}
			}
			continue
		}

		days, low := e.IsLow(p)
		if !low {
			continue
		}

		key := p.ID.String()
		_, alreadyWarned := previous[key]
		current[key] = struct{}{}
		if e.policy == PolicyOnce && alreadyWarned {
			continue
		}

		signals = append(signals, Signal{UserID: userID, Collection: collection, Product: p, DaysLeft: days})
	}

	if len(current) == 0 {
		delete(e.warned, scope)
	} else {
		e.warned[scope] = current
	}

	if len(signals) > 0 {
		lowStockSignals.WithLabelValues(collection).Add(float64(len(signals)))
	}
	return signals
}

// Forget drops the warning memory of a user, e.g. on sign-out.
func (e *Evaluator) Forget(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prefix := userID + "/"
	for scope := range e.warned {
		if strings.HasPrefix(scope, prefix) {
			delete(e.warned, scope)
		}
	}
}
