package v1_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/core/idempotency"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/domain/guard"
	"stockflow/internal/domain/registers/stock"
	v1 "stockflow/internal/infrastructure/http/v1"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/pkg/numerator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router   *gin.Engine
	store    *memory.Store
	product  id.ID
	customer id.ID
}

func newAPI(t *testing.T, validator middleware.JWTValidator) *apiFixture {
	t.Helper()

	rule, err := stock.NewReorderRule("")
	require.NoError(t, err)
	g := guard.New(guard.PolicyStrict, guard.LogReporter{})
	engine := fulfillment.NewEngine(stock.NewLedger(g, rule), g, numerator.New(), fulfillment.DefaultConfig())

	store := memory.New()
	p := stock.Product{ID: id.New(), Code: "P-001", Name: "Cement 50kg", PhysicalStock: types.NewQuantity(10)}
	store.SeedProduct(p)
	c := counterparty.New("C-001", "Acme Retail")
	store.SeedCounterparty(*c)

	router := v1.NewRouter(v1.RouterConfig{
		Service:      fulfillment.NewService(store, engine),
		JWTValidator: validator,
		Idempotency:  idempotency.NewMemoryStore(idempotency.DefaultTTL),
		Driver:       "memory",
	})
	return &apiFixture{router: router, store: store, product: p.ID, customer: c.ID}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *apiFixture) issue(t *testing.T, qty int) map[string]any {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"counterpartyId": f.customer.String(),
		"lines": []map[string]any{{
			"productId": f.product.String(),
			"quantity":  qty,
			"unitPrice": "12.50",
		}},
	}, middleware.HeaderUserID, "clerk-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)
}

func TestSales_IssueAndDeliver(t *testing.T) {
	f := newAPI(t, nil)

	sale := f.issue(t, 5)
	assert.Equal(t, "not_taken", sale["deliveryStatus"])
	assert.Equal(t, "clerk-1", sale["createdBy"])
	lines := sale["lines"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.EqualValues(t, 5, line["quantityRemaining"])

	p, _ := f.store.Product(f.product)
	assert.Equal(t, types.NewQuantity(5), p.ReservedStock)

	saleID := sale["id"].(string)
	w := f.do(t, http.MethodPost, "/api/v1/sales/"+saleID+"/deliveries", map[string]any{
		"items":      []map[string]any{{"lineId": line["id"], "quantity": 2}},
		"receivedBy": "J. Doe",
	}, middleware.HeaderUserID, "storekeeper")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode(t, w)
	assert.Equal(t, "partially_taken", rec["transactionStatus"])
	assert.Equal(t, "storekeeper", rec["deliveredBy"])

	w = f.do(t, http.MethodGet, "/api/v1/sales/"+saleID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "partially_taken", got["deliveryStatus"])
	assert.EqualValues(t, 3, got["lines"].([]any)[0].(map[string]any)["quantityRemaining"])

	w = f.do(t, http.MethodGet, "/api/v1/sales/"+saleID+"/deliveries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)
}

func TestSales_OverDeliveryRendersBusinessError(t *testing.T) {
	f := newAPI(t, nil)
	sale := f.issue(t, 2)
	line := sale["lines"].([]any)[0].(map[string]any)

	w := f.do(t, http.MethodPost, "/api/v1/sales/"+sale["id"].(string)+"/deliveries", map[string]any{
		"items": []map[string]any{{"lineId": line["id"], "quantity": 3}},
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "OVER_DELIVERY", body["code"])
	assert.Equal(t, line["id"], body["details"].(map[string]any)["line_id"])
}

func TestSales_InsufficientStock(t *testing.T) {
	f := newAPI(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"counterpartyId": f.customer.String(),
		"lines":          []map[string]any{{"productId": f.product.String(), "quantity": 11, "unitPrice": "1"}},
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, w)["code"])
	assert.Zero(t, f.store.TransactionCount())
}

func TestSales_RequestValidation(t *testing.T) {
	f := newAPI(t, nil)

	t.Run("no lines", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/sales", map[string]any{"counterpartyId": f.customer.String()})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
	})

	t.Run("bad path id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/sales/not-a-uuid", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "id", decode(t, w)["details"].(map[string]any)["field"])
	})

	t.Run("unknown transaction", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/sales/"+id.New().String(), nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "TRANSACTION_NOT_FOUND", decode(t, w)["code"])
	})
}

func TestProducts_StockAndAdjustments(t *testing.T) {
	f := newAPI(t, nil)
	path := "/api/v1/products/" + f.product.String()

	w := f.do(t, http.MethodPost, path+"/adjustments", map[string]any{"delta": -4, "note": "breakage"},
		middleware.HeaderUserID, "auditor-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, path+"/stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 6, body["physicalStock"])
	assert.EqualValues(t, 6, body["available"])

	w = f.do(t, http.MethodGet, path+"/adjustments?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "manual", items[0].(map[string]any)["reason"])

	w = f.do(t, http.MethodGet, path+"/adjustments?limit=0", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, path+"/adjustments?limit=9999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdempotency_ReplaysAndRejectsMismatch(t *testing.T) {
	f := newAPI(t, nil)
	body := map[string]any{"code": "C-002", "name": "Beta Traders"}

	first := f.do(t, http.MethodPost, "/api/v1/counterparties", body, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := f.do(t, http.MethodPost, "/api/v1/counterparties", body, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	other := f.do(t, http.MethodPost, "/api/v1/counterparties",
		map[string]any{"code": "C-003", "name": "Gamma"}, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusUnprocessableEntity, other.Code)
	assert.Equal(t, "IDEMPOTENCY_MISMATCH", decode(t, other)["code"])
}

func TestIdempotency_ReplaysFailures(t *testing.T) {
	f := newAPI(t, nil)
	body := map[string]any{
		"counterpartyId": id.New().String(),
		"lines":          []map[string]any{{"productId": f.product.String(), "quantity": 1, "unitPrice": "1"}},
	}

	first := f.do(t, http.MethodPost, "/api/v1/sales", body, middleware.HeaderIdempotencyKey, "k-2")
	require.Equal(t, http.StatusNotFound, first.Code)

	second := f.do(t, http.MethodPost, "/api/v1/sales", body, middleware.HeaderIdempotencyKey, "k-2")
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "COUNTERPARTY_NOT_FOUND", decode(t, second)["code"])
}

type stubValidator map[string]*appctx.UserContext

func (s stubValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, errors.New("bad token")
}

func TestAuth_RolesGateWrites(t *testing.T) {
	f := newAPI(t, stubValidator{
		"clerk":   {UserID: "u-1", Roles: []string{"sales"}},
		"auditor": {UserID: "u-2", Roles: []string{"auditor"}},
	})
	body := map[string]any{"code": "C-009", "name": "Delta"}

	w := f.do(t, http.MethodPost, "/api/v1/counterparties", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/counterparties", body, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/counterparties", body, "Authorization", "Bearer auditor")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w)["code"])

	w = f.do(t, http.MethodPost, "/api/v1/counterparties", body, "Authorization", "Bearer clerk")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/counterparties/"+f.customer.String(), nil, "Authorization", "Bearer auditor")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	f := newAPI(t, nil)

	w := f.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "memory", decode(t, w)["checks"].(map[string]any)["storage"])
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}
