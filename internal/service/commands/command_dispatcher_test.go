package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/service/auth"
)

type call struct {
	op         string
	collection string
	id         models.ProductID
	amount     int
	userID     string
}

type fakeInventory struct {
	calls   []call
	views   []models.ProductView
	outcome models.Outcome
}

func (f *fakeInventory) List(ctx context.Context, collection string) ([]models.ProductView, error) {
	f.calls = append(f.calls, call{op: "list", collection: collection, userID: auth.CurrentUser(ctx).ID})
	return f.views, nil
}

func (f *fakeInventory) adjust(ctx context.Context, op, collection string, id models.ProductID, amount int) (models.Result, error) {
	f.calls = append(f.calls, call{op: op, collection: collection, id: id, amount: amount, userID: auth.CurrentUser(ctx).ID})
	p := models.Product{ID: id, Name: "Coffee", Volume: 1000, Remaining: 600, DailyUsage: 100}
	outcome := f.outcome
	if outcome == "" {
		outcome = models.OutcomeSaved
	}
	return models.Result{Product: models.NewProductView(p, models.SyncSaved), Outcome: outcome}, nil
}

func (f *fakeInventory) Consume(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error) {
	return f.adjust(ctx, "consume", collection, id, amount)
}

func (f *fakeInventory) Restock(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error) {
	return f.adjust(ctx, "restock", collection, id, amount)
}

type phoneBook map[string]*models.User

func (p phoneBook) FindUserByPhone(_ context.Context, phone string) (*models.User, error) {
	if u, ok := p[phone]; ok {
		return u, nil
	}
	return nil, models.ErrUserNotFound
}

func newDispatcher() (*Service, *fakeInventory) {
	inv := &fakeInventory{}
	users := phoneBook{"+224622350064": {ID: "u1", Phone: "+224622350064"}}
	return NewService(inv, users, nil), inv
}

// TestHandleCommand_Consume runs as the account linked to the sender's number.
func TestHandleCommand_Consume(t *testing.T) {
	svc, inv := newDispatcher()

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/consume 1700000000000 400g"), "224622350064")
	require.NoError(t, err)
	assert.Equal(t, "Used 400 g of Coffee. Now 600/1000 g, 6 day(s) left.", reply)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, call{op: "consume", collection: models.CollectionSavedProducts, id: 1700000000000, amount: 400, userID: "u1"}, inv.calls[0])
}

func TestHandleCommand_RestockOtherCollection(t *testing.T) {
	svc, inv := newDispatcher()

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/restock 5 100 products"), "+224622350064")
	require.NoError(t, err)
	assert.Contains(t, reply, "Restocked Coffee.")
	assert.Equal(t, models.CollectionProducts, inv.calls[0].collection)
}

// TestHandleCommand_UnsavedChange does not report a write the store rejected.
func TestHandleCommand_UnsavedChange(t *testing.T) {
	svc, inv := newDispatcher()

	inv.outcome = models.OutcomeReverted
	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/consume 5 100"), "224622350064")
	require.NoError(t, err)
	assert.Equal(t, "The change to Coffee was not saved, nothing changed. Please try again.", reply)

	reply, err = svc.HandleCommand(context.Background(), models.ParseCommand("/restock 5 100"), "224622350064")
	require.NoError(t, err)
	assert.NotContains(t, reply, "Restocked")

	inv.outcome = models.OutcomeUnreconciled
	reply, err = svc.HandleCommand(context.Background(), models.ParseCommand("/consume 5 100"), "224622350064")
	require.NoError(t, err)
	assert.Contains(t, reply, "could not be confirmed")
}

func TestHandleCommand_Stock(t *testing.T) {
	svc, inv := newDispatcher()
	inv.views = []models.ProductView{
		models.NewProductView(models.Product{ID: 1, Name: "Tea", Volume: 200, Remaining: 40, DailyUsage: 10}, models.SyncSaved),
		models.NewProductView(models.Product{ID: 2, Name: "Salt", Volume: 500, Remaining: 500}, models.SyncSaved),
	}

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/stock"), "224622350064")
	require.NoError(t, err)
	assert.Equal(t, "Your stock:\n#1 Tea: Now 40/200 g, 4 day(s) left.\n#2 Salt: Now 500/500 g, usage unknown.", reply)
}

func TestHandleCommand_Errors(t *testing.T) {
	svc, _ := newDispatcher()
	ctx := context.Background()

	_, err := svc.HandleCommand(ctx, models.ParseCommand("/consume 12"), "224622350064")
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = svc.HandleCommand(ctx, models.ParseCommand("/consume abc 12"), "224622350064")
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = svc.HandleCommand(ctx, models.ParseCommand("/stock attic"), "224622350064")
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = svc.HandleCommand(ctx, models.ParseCommand("/stock"), "15550000000")
	assert.ErrorIs(t, err, ErrUnknownSender)

	_, err = svc.HandleCommand(ctx, models.ParseCommand("/eggs 12"), "224622350064")
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

// TestHandleCommand_HelpNeedsNoAccount answers /help for unknown numbers too.
func TestHandleCommand_HelpNeedsNoAccount(t *testing.T) {
	svc, _ := newDispatcher()

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/help"), "15550000000")
	require.NoError(t, err)
	assert.Equal(t, HelpText(), reply)
}
