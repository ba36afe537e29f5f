package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/repository/mongodb"
)

// RepairReport summarises a reconcile pass.
type RepairReport struct {
	Collection        string `json:"collection"`
	DuplicatesRemoved int    `json:"duplicatesRemoved"`
	Reinserted        int    `json:"reinserted"`
	Adopted           int    `json:"adopted"`
	Dropped           int    `json:"dropped"`
}

// Reconcile repairs the user's collection: duplicate documents per id are removed,
// orphaned local records are inserted again, remote-only records are adopted and
// saved local records missing remotely are dropped.
func (s *Service) Reconcile(ctx context.Context, collection string) (RepairReport, error) {
	user, key, err := s.session(ctx, collection)
	if err != nil {
		return RepairReport{}, err
	}
	report := RepairReport{Collection: collection}

	stored, err := s.store.QueryByEquality(ctx, collection, mongodb.OwnedBy(user.ID))
	if err != nil {
		return report, &models.RemoteError{Op: "reconcile", Outcome: models.OutcomeReverted, Err: fmt.Errorf("reconcile %s: %w", collection, err)}
	}

	var errs []error
	remote := make(map[models.ProductID]models.Product, len(stored))
	for _, sp := range stored {
		if _, dup := remote[sp.ID]; dup {
			if err := s.store.DeleteByHandle(ctx, collection, sp.Handle); err != nil {
				errs = append(errs, fmt.Errorf("remove duplicate %s: %w", sp.ID, err))
				continue
			}
			report.DuplicatesRemoved++
			continue
		}
		remote[sp.ID] = sp.Product
	}

	for _, e := range s.local.list(key) {
		if _, ok := remote[e.product.ID]; ok {
			continue
		}
		switch e.status {
		case models.SyncOrphaned:
			if _, err := s.store.Insert(ctx, collection, e.product); err != nil {
				errs = append(errs, fmt.Errorf("reinsert %s: %w", e.product.ID, err))
				continue
			}
			remote[e.product.ID] = e.product
			report.Reinserted++
		case models.SyncSaved:
			report.Dropped++
		}
	}

	products := make([]models.Product, 0, len(remote))
	for id, p := range remote {
		if _, ok := s.local.get(key, id); !ok {
			report.Adopted++
		}
		products = append(products, p)
	}
	s.local.load(key, products)

	s.logger.Info("collection reconciled",
		zap.String("user_id", user.ID),
		zap.String("collection", collection),
		zap.Int("duplicates_removed", report.DuplicatesRemoved),
		zap.Int("reinserted", report.Reinserted),
		zap.Int("adopted", report.Adopted),
		zap.Int("dropped", report.Dropped))

	return report, errors.Join(errs...)
}

// Snapshot reads a user's records straight from the store, bypassing the local set.
func (s *Service) Snapshot(ctx context.Context, userID, collection string) ([]models.Product, error) {
	stored, err := s.store.QueryByEquality(ctx, collection, mongodb.OwnedBy(userID))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", collection, err)
	}

	seen := make(map[models.ProductID]struct{}, len(stored))
	products := make([]models.Product, 0, len(stored))
	for _, sp := range stored {
		if _, dup := seen[sp.ID]; dup {
			continue
		}
		seen[sp.ID] = struct{}{}
		products = append(products, sp.Product)
	}
	return products, nil
}

// TrackingUsers returns the users owning at least one auto-tracked record in any collection.
func (s *Service) TrackingUsers(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, collection := range models.Collections() {
		ids, err := s.store.DistinctUserIDs(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("list users of %s: %w", collection, err)
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// Sweep is the periodic low-stock pass over every auto-tracked record. It returns
// the number of signals raised.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.users == nil {
		return 0, errors.New("sweep requires a user directory")
	}

	userIDs, err := s.TrackingUsers(ctx)
	if err != nil {
		return 0, err
	}

	var (
		errs  []error
		total int
	)
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		user, err := s.users.FindUserByID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load user %s: %w", userID, err))
			continue
		}

		for _, collection := range models.Collections() {
			products, err := s.Snapshot(ctx, userID, collection)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, sig := range s.evaluator.Evaluate(userID, collection, products, true) {
				s.notify(*user, sig.Notification())
				total++
			}
		}
	}

	s.logger.Info("low stock sweep finished", zap.Int("users", len(userIDs)), zap.Int("signals", total))
	return total, errors.Join(errs...)
}
