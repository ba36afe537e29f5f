package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/repository/mongodb"
	"github.com/mamadbah2/pantry/internal/service/alerts"
)

var operations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pantry_inventory_operations_total",
	Help: "Inventory writes by operation and outcome",
}, []string{"op", "outcome"})

// Store is the remote document store, one collection per product set.
type Store interface {
	Insert(ctx context.Context, collection string, product models.Product) (string, error)
	QueryByEquality(ctx context.Context, collection string, filters ...mongodb.Filter) ([]mongodb.StoredProduct, error)
	DeleteByHandle(ctx context.Context, collection string, handle string) error
	DistinctUserIDs(ctx context.Context, collection string) ([]string, error)
}

// Replacer is implemented by stores that can swap a document in one call.
type Replacer interface {
	ReplaceByHandle(ctx context.Context, collection string, handle string, product models.Product) error
}

// Identity resolves the signed-in user of a request.
type Identity interface {
	CurrentUser(ctx context.Context) *models.User
}

// UserDirectory looks users up for background passes.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// Notifier schedules one-shot user notifications.
type Notifier interface {
	ScheduleOneShot(user models.User, n models.Notification, delay time.Duration) bool
}

// Options tune how remote failures and alerts are handled.
type Options struct {
	// SurfaceRemoteErrors returns *models.RemoteError to callers. When false the
	// failure is logged and only the Result outcome reports it.
	SurfaceRemoteErrors bool
	NotificationDelay   time.Duration
}

// Service owns the local read model and reconciles it with the document store.
type Service struct {
	store     Store
	replacer  Replacer
	identity  Identity
	users     UserDirectory
	notifier  Notifier
	evaluator *alerts.Evaluator
	logger    *zap.Logger
	opts      Options
	local     *localStore
	now       func() time.Time
}

// NewService wires the inventory service. users and notifier may be nil.
func NewService(store Store, identity Identity, users UserDirectory, notifier Notifier, evaluator *alerts.Evaluator, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = alerts.NewEvaluator(alerts.PolicyOnce, 0)
	}
	replacer, _ := store.(Replacer)
	return &Service{
		store:     store,
		replacer:  replacer,
		identity:  identity,
		users:     users,
		notifier:  notifier,
		evaluator: evaluator,
		logger:    logger,
		opts:      opts,
		local:     newLocalStore(),
		now:       time.Now,
	}
}

func (s *Service) session(ctx context.Context, collection string) (*models.User, setKey, error) {
	if !models.IsCollection(collection) {
		return nil, setKey{}, fmt.Errorf("%w: %s", models.ErrUnknownCollection, collection)
	}
	user := s.identity.CurrentUser(ctx)
	if user == nil {
		return nil, setKey{}, models.ErrNotAuthenticated
	}
	return user, setKey{userID: user.ID, collection: collection}, nil
}

func (s *Service) ensureLoaded(ctx context.Context, key setKey) error {
	if s.local.isLoaded(key) {
		return nil
	}
	return s.reload(ctx, key)
}

func (s *Service) reload(ctx context.Context, key setKey) error {
	stored, err := s.store.QueryByEquality(ctx, key.collection, mongodb.OwnedBy(key.userID))
	if err != nil {
		return fmt.Errorf("load %s: %w", key.collection, err)
	}
	products := make([]models.Product, 0, len(stored))
	for _, sp := range stored {
		products = append(products, sp.Product)
	}
	s.local.load(key, products)
	return nil
}

// List returns the user's records in a collection, loading them on first use.
func (s *Service) List(ctx context.Context, collection string) ([]models.ProductView, error) {
	_, key, err := s.session(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := s.ensureLoaded(ctx, key); err != nil {
		return nil, &models.RemoteError{Op: "list", Outcome: models.OutcomeReverted, Err: err}
	}

	entries := s.local.list(key)
	views := make([]models.ProductView, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.view())
	}
	return views, nil
}

// Refresh discards the local copy of a collection and reloads it from the store.
func (s *Service) Refresh(ctx context.Context, collection string) ([]models.ProductView, error) {
	_, key, err := s.session(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := s.reload(ctx, key); err != nil {
		return nil, &models.RemoteError{Op: "refresh", Outcome: models.OutcomeReverted, Err: err}
	}
	return s.List(ctx, collection)
}

// Create validates the form, adds the record locally and inserts it remotely.
func (s *Service) Create(ctx context.Context, collection string, in models.ProductInput) (models.Result, error) {
	fields, err := in.Parse()
	if err != nil {
		return models.Result{}, err
	}
	if in.ID != nil && *in.ID <= 0 {
		return models.Result{}, models.NewValidationError("id", "id must be a positive number")
	}

	user, key, err := s.session(ctx, collection)
	if err != nil {
		return models.Result{}, err
	}
	if err := s.ensureLoaded(ctx, key); err != nil {
		return s.readFailure("create", err)
	}

	now := s.now()
	product := models.Product{UserID: user.ID, CreatedAt: now.UTC()}.Apply(fields)
	product.Remaining = product.Volume

	if in.ID != nil {
		product.ID = *in.ID
		if _, exists := s.local.get(key, product.ID); exists {
			return models.Result{}, fmt.Errorf("%w: %s", models.ErrDuplicate, product.ID)
		}
	} else {
		product.ID = models.NewProductID(now)
		for {
			if _, exists := s.local.get(key, product.ID); !exists {
				break
			}
			product.ID++
		}
	}

	existing, err := s.store.QueryByEquality(ctx, collection, mongodb.OwnedBy(user.ID), mongodb.HasID(product.ID))
	if err != nil {
		return s.readFailure("create", fmt.Errorf("check duplicate: %w", err))
	}
	if len(existing) > 0 {
		s.local.put(key, existing[0].Product, models.SyncSaved)
		return models.Result{}, fmt.Errorf("%w: %s", models.ErrDuplicate, product.ID)
	}

	s.local.put(key, product, models.SyncPending)
	if _, err := s.store.Insert(ctx, collection, product); err != nil {
		s.local.remove(key, product.ID)
		return s.remoteFailure("create", models.OutcomeReverted, err,
			models.Result{Product: models.NewProductView(product, models.SyncPending)})
	}
	s.local.put(key, product, models.SyncSaved)

	s.logger.Info("product created",
		zap.String("user_id", user.ID),
		zap.String("collection", collection),
		zap.String("product_id", product.ID.String()))

	s.afterChange(*user, key)
	return s.saved("create", models.Result{Product: models.NewProductView(product, models.SyncSaved)}), nil
}

// Update replaces every editable field of a record, keeping its id and creation time.
func (s *Service) Update(ctx context.Context, collection string, id models.ProductID, in models.ProductInput) (models.Result, error) {
	fields, err := in.Parse()
	if err != nil {
		return models.Result{}, err
	}

	user, key, err := s.session(ctx, collection)
	if err != nil {
		return models.Result{}, err
	}
	if err := s.ensureLoaded(ctx, key); err != nil {
		return s.readFailure("update", err)
	}

	target, found, err := s.find(ctx, key, id)
	if err != nil {
		return s.readFailure("update", err)
	}
	if !found {
		return models.Result{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	updated := target.Product.Apply(fields)
	result, err := s.persist(ctx, key, "update", target, updated)
	if err == nil && result.Outcome == models.OutcomeSaved {
		s.afterChange(*user, key)
	}
	return result, err
}

// Consume subtracts amount grams from a record.
func (s *Service) Consume(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error) {
	return s.adjust(ctx, collection, id, amount, "consume", (*models.Product).Consume)
}

// Restock adds amount grams to a record, capped at its volume.
func (s *Service) Restock(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error) {
	return s.adjust(ctx, collection, id, amount, "restock", (*models.Product).Restock)
}

func (s *Service) adjust(ctx context.Context, collection string, id models.ProductID, amount int, op string,
	apply func(*models.Product, int) (models.StockChange, error)) (models.Result, error) {
	if err := (models.StockAdjustment{Amount: amount}).Validate(); err != nil {
		return models.Result{}, err
	}

	user, key, err := s.session(ctx, collection)
	if err != nil {
		return models.Result{}, err
	}
	if err := s.ensureLoaded(ctx, key); err != nil {
		return s.readFailure(op, err)
	}

	target, found, err := s.find(ctx, key, id)
	if err != nil {
		return s.readFailure(op, err)
	}
	if !found {
		return models.Result{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	updated := target.Product
	change, err := apply(&updated, amount)
	if err != nil {
		return models.Result{}, err
	}

	result, err := s.persist(ctx, key, op, target, updated)
	result.Change = &change
	if err != nil || result.Outcome != models.OutcomeSaved {
		return result, err
	}

	s.notifyStockChange(*user, updated, change)
	s.afterChange(*user, key)
	return result, nil
}

// Delete removes a record locally and every matching document remotely.
func (s *Service) Delete(ctx context.Context, collection string, id models.ProductID) (models.Result, error) {
	user, key, err := s.session(ctx, collection)
	if err != nil {
		return models.Result{}, err
	}
	if err := s.ensureLoaded(ctx, key); err != nil {
		return s.readFailure("delete", err)
	}

	prev, existed := s.local.get(key, id)
	s.local.remove(key, id)

	matches, err := s.store.QueryByEquality(ctx, collection, mongodb.OwnedBy(user.ID), mongodb.HasID(id))
	if err != nil {
		s.local.restore(key, prev, existed, id)
		return s.remoteFailure("delete", models.OutcomeReverted, err, models.Result{Product: prev.view()})
	}
	if len(matches) == 0 {
		if existed && prev.status == models.SyncOrphaned {
			return s.saved("delete", models.Result{Product: prev.view()}), nil
		}
		return models.Result{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}

	removed := models.NewProductView(matches[0].Product, models.SyncSaved)
	for i, m := range matches {
		if err := s.store.DeleteByHandle(ctx, collection, m.Handle); err != nil {
			restored := localEntry{product: matches[0].Product, status: models.SyncSaved}
			s.local.put(key, restored.product, restored.status)
			outcome := models.OutcomeReverted
			if i > 0 {
				outcome = models.OutcomeUnreconciled
			}
			return s.remoteFailure("delete", outcome, err, models.Result{Product: restored.view()})
		}
	}

	s.logger.Info("product deleted",
		zap.String("user_id", user.ID),
		zap.String("collection", collection),
		zap.String("product_id", id.String()),
		zap.Int("documents", len(matches)))
	s.afterChange(*user, key)
	return s.saved("delete", models.Result{Product: removed}), nil
}

// find returns the first stored document of id. The error is set only when the
// store could not be read.
func (s *Service) find(ctx context.Context, key setKey, id models.ProductID) (mongodb.StoredProduct, bool, error) {
	matches, err := s.store.QueryByEquality(ctx, key.collection, mongodb.OwnedBy(key.userID), mongodb.HasID(id))
	if err != nil {
		return mongodb.StoredProduct{}, false, fmt.Errorf("find product %s: %w", id, err)
	}
	if len(matches) == 0 {
		return mongodb.StoredProduct{}, false, nil
	}
	return matches[0], true, nil
}

// persist writes updated over target. With a Replacer it is a single call;
// otherwise the document is deleted and reinserted, and the original is put
// back when the reinsert fails.
func (s *Service) persist(ctx context.Context, key setKey, op string, target mongodb.StoredProduct, updated models.Product) (models.Result, error) {
	prev, existed := s.local.get(key, updated.ID)
	s.local.put(key, updated, models.SyncPending)
	pending := models.Result{Product: models.NewProductView(updated, models.SyncPending)}

	if s.replacer != nil {
		if err := s.replacer.ReplaceByHandle(ctx, key.collection, target.Handle, updated); err != nil {
			s.local.restore(key, prev, existed, updated.ID)
			return s.remoteFailure(op, models.OutcomeReverted, err, pending)
		}
		s.local.put(key, updated, models.SyncSaved)
		return s.saved(op, models.Result{Product: models.NewProductView(updated, models.SyncSaved)}), nil
	}

	if err := s.store.DeleteByHandle(ctx, key.collection, target.Handle); err != nil {
		s.local.restore(key, prev, existed, updated.ID)
		return s.remoteFailure(op, models.OutcomeReverted, err, pending)
	}

	if _, err := s.store.Insert(ctx, key.collection, updated); err != nil {
		if _, cerr := s.store.Insert(ctx, key.collection, target.Product); cerr != nil {
			s.local.put(key, updated, models.SyncOrphaned)
			s.logger.Error("compensating insert failed, record orphaned",
				zap.String("user_id", key.userID),
				zap.String("collection", key.collection),
				zap.String("product_id", updated.ID.String()),
				zap.Error(cerr))
			return s.remoteFailure(op, models.OutcomeUnreconciled, errors.Join(err, cerr),
				models.Result{Product: models.NewProductView(updated, models.SyncOrphaned)})
		}
		s.local.put(key, target.Product, models.SyncSaved)
		return s.remoteFailure(op, models.OutcomeReverted, err,
			models.Result{Product: models.NewProductView(target.Product, models.SyncSaved)})
	}

	s.local.put(key, updated, models.SyncSaved)
	return s.saved(op, models.Result{Product: models.NewProductView(updated, models.SyncSaved)}), nil
}

func (s *Service) saved(op string, result models.Result) models.Result {
	result.Outcome = models.OutcomeSaved
	operations.WithLabelValues(op, string(models.OutcomeSaved)).Inc()
	return result
}

func (s *Service) remoteFailure(op string, outcome models.Outcome, err error, result models.Result) (models.Result, error) {
	operations.WithLabelValues(op, string(outcome)).Inc()
	result.Outcome = outcome

	s.logger.Warn("remote write failed",
		zap.String("op", op),
		zap.String("outcome", string(outcome)),
		zap.String("product_id", result.Product.ID.String()),
		zap.Error(err))

	if !s.opts.SurfaceRemoteErrors {
		return result, nil
	}
	return result, &models.RemoteError{Op: op, Outcome: outcome, Err: err}
}

// readFailure reports a store read that failed before anything changed locally.
func (s *Service) readFailure(op string, err error) (models.Result, error) {
	return s.remoteFailure(op, models.OutcomeReverted, err, models.Result{})
}

// afterChange runs the on-change low-stock evaluation over the user's local set.
func (s *Service) afterChange(user models.User, key setKey) {
	signals := s.evaluator.Evaluate(user.ID, key.collection, s.local.products(key), false)
	for _, sig := range signals {
		s.notify(user, sig.Notification())
	}
}

func (s *Service) notifyStockChange(user models.User, p models.Product, change models.StockChange) {
	switch {
	case change.Depleted:
		s.notify(user, models.Notification{
			Title: fmt.Sprintf("%s is out of stock", p.Name),
			Body:  fmt.Sprintf("You have used up all %d g of %s.", p.Volume, p.Name),
		})
	case change.Critical:
		s.notify(user, models.Notification{
			Title: fmt.Sprintf("%s is almost gone", p.Name),
			Body:  fmt.Sprintf("Only %d g of %s left, below %d%% of the pack.", p.Remaining, p.Name, models.CriticalPercent),
		})
	}
}

func (s *Service) notify(user models.User, n models.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.ScheduleOneShot(user, n, s.opts.NotificationDelay)
}

// HandleAuthEvent reloads the user's sets on the next access whenever the session
// changes. Unsaved entries are kept for the repair pass. It is meant to be passed
// to the identity provider's Subscribe.
func (s *Service) HandleAuthEvent(ev models.AuthEvent) {
	s.local.unload(ev.UserID)
	if ev.User == nil {
		s.evaluator.Forget(ev.UserID)
	}
}
