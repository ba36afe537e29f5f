package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/server/handlers"
	"github.com/mamadbah2/pantry/internal/service/auth"
	"github.com/mamadbah2/pantry/internal/service/inventory"
)

var ada = &models.User{ID: "u1", Email: "ada@example.com"}

type fakeAuth struct {
	signedOut []string
}

func (f *fakeAuth) Register(_ context.Context, in models.RegisterInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &models.User{ID: "u2", Email: in.Email}, nil
}

func (f *fakeAuth) SignIn(context.Context, models.LoginInput) (*auth.Session, error) {
	return nil, models.ErrInvalidCredentials
}

func (f *fakeAuth) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if token == "good" {
		return ada, nil
	}
	return nil, models.ErrTokenInvalid
}

type fakeProducts struct {
	created []models.ProductInput
	result  models.Result
	err     error
}

func (f *fakeProducts) List(ctx context.Context, collection string) ([]models.ProductView, error) {
	if !models.IsCollection(collection) {
		return nil, models.ErrUnknownCollection
	}
	p := models.Product{ID: 1, Name: "Tea", Volume: 200, Remaining: 40, DailyUsage: 10, UserID: auth.CurrentUser(ctx).ID}
	return []models.ProductView{models.NewProductView(p, models.SyncSaved)}, nil
}

func (f *fakeProducts) Refresh(ctx context.Context, collection string) ([]models.ProductView, error) {
	return f.List(ctx, collection)
}

func (f *fakeProducts) Create(_ context.Context, _ string, in models.ProductInput) (models.Result, error) {
	f.created = append(f.created, in)
	if _, err := in.Parse(); err != nil {
		return models.Result{}, err
	}
	return f.result, f.err
}

func (f *fakeProducts) Update(context.Context, string, models.ProductID, models.ProductInput) (models.Result, error) {
	return f.result, f.err
}

func (f *fakeProducts) Delete(_ context.Context, _ string, id models.ProductID) (models.Result, error) {
	if id != 1 {
		return models.Result{}, models.ErrNotFound
	}
	return f.result, f.err
}

func (f *fakeProducts) Consume(context.Context, string, models.ProductID, int) (models.Result, error) {
	return f.result, f.err
}

func (f *fakeProducts) Restock(context.Context, string, models.ProductID, int) (models.Result, error) {
	return f.result, f.err
}

func (f *fakeProducts) Reconcile(_ context.Context, collection string) (inventory.RepairReport, error) {
	return inventory.RepairReport{Collection: collection, Adopted: 2}, nil
}

type fakeExporter struct{ rows int }

func (f *fakeExporter) ExportInventory(_ context.Context, _ models.User, _ string, products []models.Product) (int, error) {
	f.rows = len(products)
	return f.rows, nil
}

type fakePermissions struct {
	got models.NotificationPermission
}

func (f *fakePermissions) RequestPermission(_ context.Context, _ string, req models.NotificationPermission) error {
	if err := req.Validate(); err != nil {
		return err
	}
	f.got = req
	return nil
}

type testServer struct {
	handler  http.Handler
	auth     *fakeAuth
	products *fakeProducts
	perms    *fakePermissions
}

func newTestServer() testServer {
	a := &fakeAuth{}
	p := &fakeProducts{}
	perms := &fakePermissions{}
	h := Handlers{
		Auth:          handlers.NewAuthHandler(a, nil),
		Products:      handlers.NewProductHandler(p, &fakeExporter{}, nil),
		Notifications: handlers.NewNotificationHandler(perms, nil),
	}
	return testServer{handler: New(h, nil), auth: a, products: p, perms: perms}
}

func (s testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer()

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/webhook", "", "").Code)
}

// TestSession_Required rejects missing and invalid bearer tokens.
func TestSession_Required(t *testing.T) {
	s := newTestServer()

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/collections/products/products", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/collections/products/products", "", "bad").Code)

	rec := s.do(http.MethodGet, "/auth/me", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", decode(t, rec)["uid"])
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodPost, "/auth/register", `{"email":"bob@example.com","password":"secret1","confirmPassword":"secret1"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/auth/register", `{"email":"bob@example.com","password":"secret1","confirmPassword":"other"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["fields"], "confirmPassword")

	rec = s.do(http.MethodPost, "/auth/login", `{"email":"bob@example.com","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/logout", "", "good")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"good"}, s.auth.signedOut)
}

func TestListProducts(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodGet, "/collections/savedProducts/products", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode(t, rec)["products"].([]any)
	require.Len(t, products, 1)
	first := products[0].(map[string]any)
	assert.Equal(t, float64(4), first["daysLeft"])
	assert.Equal(t, "saved", first["syncStatus"])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/collections/attic/products", "", "good").Code)
}

// TestCreateProduct_StatusCodes maps outcomes and errors to HTTP codes.
func TestCreateProduct_StatusCodes(t *testing.T) {
	body := `{"name":"Coffee","category":"Coffee","volume":"1000","purchaseDate":"01.01.2024","dailyUsage":100}`

	s := newTestServer()
	s.products.result = models.Result{Outcome: models.OutcomeSaved}
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/collections/products/products", body, "good").Code)
	require.Len(t, s.products.created, 1)
	assert.Equal(t, models.NumericText("100"), s.products.created[0].DailyUsage)

	rec := s.do(http.MethodPost, "/collections/products/products", `{"name":"Coffee"}`, "good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["fields"], "volume")

	s.products.err = models.ErrDuplicate
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/collections/products/products", body, "good").Code)

	s.products.err = &models.RemoteError{Op: "create", Outcome: models.OutcomeReverted, Err: context.DeadlineExceeded}
	s.products.result = models.Result{Outcome: models.OutcomeReverted}
	rec = s.do(http.MethodPost, "/collections/products/products", body, "good")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed_reverted", decode(t, rec)["outcome"])

	s.products.err = nil
	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/collections/products/products", body, "good").Code)
}

func TestProductMutations(t *testing.T) {
	s := newTestServer()
	s.products.result = models.Result{Outcome: models.OutcomeSaved}

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/collections/products/products/1", "", "good").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/collections/products/products/2", "", "good").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/collections/products/products/abc", "", "good").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/collections/products/products/1/consume", `{"amount":50}`, "good").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/collections/products/products/1/restock", `{"amount":50}`, "good").Code)

	rec := s.do(http.MethodPost, "/collections/products/reconcile", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["adopted"])

	rec = s.do(http.MethodPost, "/collections/products/export", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["rows"])
}

func TestNotificationPermission(t *testing.T) {
	s := newTestServer()

	rec := s.do(http.MethodPost, "/notifications/permission", `{"enabled":true,"phone":"+224622350064"}`, "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.perms.got.Enabled)

	rec = s.do(http.MethodPost, "/notifications/permission", `{"enabled":true,"phone":"12"}`, "good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeChat struct {
	inbound  int
	sent     []models.OutboundMessageRequest
	failNext bool
}

func (f *fakeChat) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != "verify-me" {
		return "", errors.New("invalid verify token")
	}
	return challenge, nil
}

func (f *fakeChat) HandleWebhook(_ context.Context, payload models.WebhookPayload) error {
	for _, e := range payload.Entry {
		for _, c := range e.Changes {
			f.inbound += len(c.Value.Messages)
		}
	}
	if f.failNext {
		return errors.New("reply failed")
	}
	return nil
}

func (f *fakeChat) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	if f.failNext {
		return errors.New("graph api down")
	}
	f.sent = append(f.sent, req)
	return nil
}

func TestWebhookRoutes(t *testing.T) {
	chat := &fakeChat{}
	h := Handlers{
		Auth:          handlers.NewAuthHandler(&fakeAuth{}, nil),
		Products:      handlers.NewProductHandler(&fakeProducts{}, &fakeExporter{}, nil),
		Notifications: handlers.NewNotificationHandler(&fakePermissions{}, nil),
		Webhook:       handlers.NewWebhookHandler(chat, nil),
	}
	s := testServer{handler: New(h, nil)}

	rec := s.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope", "", "").Code)

	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"from":"224622350064","id":"m1","type":"text","text":{"body":"/stock"}}]}}]}]}`
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/webhook", payload, "").Code)
	assert.Equal(t, 1, chat.inbound)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/webhook", "{", "").Code)

	chat.failNext = true
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/webhook", payload, "").Code, "processing errors are acknowledged")

	outbound := `{"to":"224622350064","message":"hello"}`
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/send-message", outbound, "").Code)
	assert.Equal(t, http.StatusBadGateway, s.do(http.MethodPost, "/send-message", outbound, "good").Code)

	chat.failNext = false
	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/send-message", outbound, "good").Code)
	require.Len(t, chat.sent, 1)
	assert.Equal(t, "hello", chat.sent[0].Message)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/send-message", `{"to":""}`, "good").Code)
}
