package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"webshop/internal/catalog"
	"webshop/internal/config"
	"webshop/internal/fulfillment"
	"webshop/internal/ledger"
	"webshop/internal/model"
	"webshop/internal/payment"
	"webshop/internal/shipping"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	decimal.MarshalJSONWithoutQuotes = true
}

type fakeStorefront struct {
	products   []model.Product
	productErr error
	completeFn func(o model.Order) (fulfillment.Result, error)
	paymentErr error
	gotAmount  decimal.Decimal
	gotOrder   model.Order
}

func (f *fakeStorefront) Products(context.Context) ([]model.Product, error) {
	return f.products, f.productErr
}

func (f *fakeStorefront) Product(_ context.Context, id int) (model.Product, error) {
	if f.productErr != nil {
		return model.Product{}, f.productErr
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Product{}, catalog.ErrProductNotFound
}

func (f *fakeStorefront) ListPickupPoints(context.Context) []model.PickupPoint {
	return shipping.FallbackPickupPoints()
}

func (f *fakeStorefront) CreatePaymentIntent(_ context.Context, amount decimal.Decimal, o model.Order) (fulfillment.PaymentIntent, error) {
	f.gotAmount, f.gotOrder = amount, o
	if f.paymentErr != nil {
		return fulfillment.PaymentIntent{}, f.paymentErr
	}
	return fulfillment.PaymentIntent{ClientSecret: "secret", PaymentIntentID: "pi_1"}, nil
}

func (f *fakeStorefront) CompleteOrder(_ context.Context, o model.Order) (fulfillment.Result, error) {
	f.gotOrder = o
	if f.completeFn != nil {
		return f.completeFn(o)
	}
	return fulfillment.Result{Success: true, OrderID: o.OrderID, Message: fulfillment.MessageOrderCompleted}, nil
}

func (f *fakeStorefront) SendConfirmation(context.Context, string, model.Order) fulfillment.Confirmation {
	return fulfillment.Confirmation{Success: true, Message: fulfillment.MessageEmailSent}
}

func (f *fakeStorefront) Orders(context.Context) []model.LedgerRow {
	return []model.LedgerRow{}
}

func newEngine(svc Storefront, cfg config.AppConfig, rdb *rd.Client) *gin.Engine {
	r := gin.New()
	Setup(r, svc, rdb, cfg, nil)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	r := newEngine(&fakeStorefront{}, config.AppConfig{}, nil)

	w := do(r, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"msg":"pong"}`, w.Body.String())
}

func TestProducts(t *testing.T) {
	svc := &fakeStorefront{products: []model.Product{{ID: 1, Name: "Gyöngy fülbevaló", Price: decimal.NewFromInt(1000), Quantity: 10}}}
	r := newEngine(svc, config.AppConfig{}, nil)

	w := do(r, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Gyöngy fülbevaló","price":1000,"quantity":10}]`, w.Body.String())

	w = do(r, http.MethodGet, "/api/products/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/products/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/products/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProducts_StorageError(t *testing.T) {
	svc := &fakeStorefront{productErr: fmt.Errorf("load: %w", fulfillment.ErrStorageUnavailable)}
	r := newEngine(svc, config.AppConfig{}, nil)

	w := do(r, http.MethodGet, "/api/products", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Hiba a termékek betöltésekor","kind":"storage_unavailable"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/products/1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPickupPoints_NumericFallbackIDs(t *testing.T) {
	r := newEngine(&fakeStorefront{}, config.AppConfig{}, nil)

	w := do(r, http.MethodGet, "/api/foxpost/locations", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.EqualValues(t, 1, got[0]["id"])
	assert.Equal(t, "Budapest, Nyugati tér", got[0]["name"])
}

func TestCompleteOrder_ErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: x", fulfillment.ErrInvalidOrder), http.StatusBadRequest, "invalid_order"},
		{fmt.Errorf("%w: product 9", fulfillment.ErrUnknownProduct), http.StatusUnprocessableEntity, "unknown_product"},
		{fulfillment.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
		{fulfillment.ErrDuplicateOrder, http.StatusConflict, "duplicate_order"},
		{fulfillment.ErrOrderInProgress, http.StatusConflict, "order_in_progress"},
		{fulfillment.ErrStorageUnavailable, http.StatusInternalServerError, "storage_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			svc := &fakeStorefront{completeFn: func(model.Order) (fulfillment.Result, error) {
				return fulfillment.Result{}, tt.err
			}}
			r := newEngine(svc, config.AppConfig{}, nil)

			w := do(r, http.MethodPost, "/api/complete-order", `{"orderId":"O1"}`)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCompleteOrder_MalformedBody(t *testing.T) {
	r := newEngine(&fakeStorefront{}, config.AppConfig{}, nil)

	w := do(r, http.MethodPost, "/api/complete-order", `{"orderId":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"invalid_order"`)
}

func TestCreatePaymentIntent(t *testing.T) {
	svc := &fakeStorefront{}
	r := newEngine(svc, config.AppConfig{}, nil)

	w := do(r, http.MethodPost, "/api/create-payment-intent",
		`{"amount":2999.6,"orderData":{"orderId":"O1","customerInfo":{"email":"anna@example.com","name":"Kiss Anna"}}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"clientSecret":"secret","paymentIntentId":"pi_1"}`, w.Body.String())
	assert.True(t, decimal.RequireFromString("2999.6").Equal(svc.gotAmount))
	assert.Equal(t, "anna@example.com", svc.gotOrder.CustomerInfo.Email)
}

func TestCreatePaymentIntent_Failure(t *testing.T) {
	svc := &fakeStorefront{paymentErr: fmt.Errorf("%w: declined", fulfillment.ErrPaymentFailed)}
	r := newEngine(svc, config.AppConfig{}, nil)

	w := do(r, http.MethodPost, "/api/create-payment-intent", `{"amount":1000,"orderData":{"orderId":"O1"}}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Hiba a fizetés létrehozásakor","kind":"payment_failed"}`, w.Body.String())
}

func TestSendConfirmationAndAdminOrders(t *testing.T) {
	r := newEngine(&fakeStorefront{}, config.AppConfig{}, nil)

	w := do(r, http.MethodPost, "/api/send-confirmation", `{"email":"anna@example.com","orderData":{}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Email elküldve"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/admin/orders", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCompleteOrder_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.AppConfig{OrderRateLimit: 1, OrderRateWindow: time.Minute}
	r := newEngine(&fakeStorefront{}, cfg, rdb)
	body := `{"orderId":"O1","customerInfo":{"email":"anna@example.com"}}`

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/complete-order", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/complete-order", body).Code)
	// 另一个接口单独计数
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/create-payment-intent",
		`{"amount":1000,"orderData":{"customerInfo":{"email":"anna@example.com"}}}`).Code)
}

func TestStaticFilesAndMetrics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Tünde Kincsei</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	r := newEngine(&fakeStorefront{}, config.AppConfig{StaticDir: dir}, nil)

	w := do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tünde Kincsei")

	w = do(r, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/missing.css", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"not_found"`)

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(&fakeStorefront{}, config.AppConfig{}, nil)

	w := do(r, http.MethodOptions, "/api/complete-order", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// 端到端：真实目录、台账与业务流程。
type nopPayments struct{}

func (nopPayments) CreateIntent(context.Context, payment.IntentRequest) (payment.Intent, error) {
	return payment.Intent{ID: "pi", ClientSecret: "s"}, nil
}

type downShipping struct{}

func (downShipping) ListPickupPoints(context.Context) ([]model.PickupPoint, error) {
	return nil, errors.New("unreachable")
}

func (downShipping) RegisterShipment(context.Context, shipping.ShipmentRequest) (shipping.ShipmentReceipt, error) {
	return shipping.ShipmentReceipt{}, errors.New("unreachable")
}

func TestEndToEnd_CompleteOrderThenAdminListing(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.NewStore(filepath.Join(dir, "products.json"), nil)
	require.NoError(t, cat.Save(context.Background(), []model.Product{
		{ID: 1, Name: "Gyöngy fülbevaló", Price: decimal.NewFromInt(1000), Quantity: 10},
	}))
	p := fulfillment.New(fulfillment.Deps{
		Catalog:  cat,
		Ledger:   ledger.NewStore(filepath.Join(dir, "rendelesek.xlsx"), nil),
		Payments: nopPayments{},
		Shipping: downShipping{},
	})
	r := newEngine(p, config.AppConfig{}, nil)

	order := `{
		"orderId": "O1",
		"items": [{"id": 1, "quantity": 3, "price": 1000}],
		"customerInfo": {"name": "Kiss Anna", "email": "anna@example.com", "phone": "+36301234567"},
		"shippingMethod": "foxpost",
		"foxpostLocation": "Budapest, Nyugati tér",
		"foxpostLocationId": 1,
		"total": 3000
	}`
	w := do(r, http.MethodPost, "/api/complete-order", order)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"orderId":"O1","message":"Rendelés sikeresen rögzítve"}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/complete-order", order)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"duplicate_order"`)

	w = do(r, http.MethodGet, "/api/products/1", "")
	assert.Contains(t, w.Body.String(), `"quantity":7`)

	w = do(r, http.MethodGet, "/api/admin/orders", "")
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "O1", rows[0]["orderId"])
	assert.Equal(t, "FoxPost automata", rows[0]["shippingMethod"])
	assert.EqualValues(t, 3, rows[0]["totalQuantity"])
	assert.EqualValues(t, 3000, rows[0]["total"])

	w = do(r, http.MethodGet, "/api/foxpost/locations", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Szentendre")
}
