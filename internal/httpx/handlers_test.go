package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-order-saga/internal/alerts"
	"github.com/ariefcatur/go-order-saga/internal/catalog"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	"github.com/ariefcatur/go-order-saga/internal/logx"
	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/ariefcatur/go-order-saga/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	router *chi.Mux
	redis  *miniredis.Miniredis
	ledger *inventory.Ledger
	alerts *alerts.Service
}

// newStack wires all three services into one router, the way the api binary
// does with embedded collaborators.
func newStack(t *testing.T) *stack {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.New()
	logger := logx.Discard()
	alertStore, eventLog := alerts.NewMemoryStore(), alerts.NewMemoryLog()
	ledger := &inventory.Ledger{
		Store:  inventory.NewMemoryStore(),
		Alerts: &alerts.Pipeline{Store: alertStore, Log: eventLog, Metrics: m, Logger: logger},
	}
	alertSvc := &alerts.Service{Store: alertStore, Log: eventLog}
	engine := &payment.Engine{Store: payment.NewMemoryStore(), Logger: logger}
	products := catalog.NewMemory(
		catalog.Product{SKU: "SKU-A", Name: "Widget", Price: decimal.RequireFromString("10.00")},
		catalog.Product{SKU: "SKU-ODD", Name: "Oddity", Price: decimal.RequireFromString("10.01")},
	)

	r := NewRouter(logger, m)
	(&OrdersHandler{
		Service: &orders.Service{
			Store:     orders.NewMemoryStore(),
			Catalog:   products,
			Payments:  engine,
			Inventory: ledger,
			Metrics:   m,
			Logger:    logger,
		},
		Catalog: products,
		Redis:   rdb,
		Logger:  logger,
	}).Register(r)
	(&InventoryHandler{Ledger: ledger, Alerts: alertSvc, Logger: logger}).Register(r)
	(&PaymentsHandler{Engine: engine}).Register(r)

	return &stack{router: r, redis: mr, ledger: ledger, alerts: alertSvc}
}

func (s *stack) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type orderDoc struct {
	ID                 string  `json:"id"`
	Status             string  `json:"status"`
	TotalAmount        string  `json:"total_amount"`
	PaymentID          *string `json:"payment_id"`
	CancellationReason *string `json:"cancellation_reason"`
}

func (s *stack) stock(t *testing.T, sku string, available, threshold int) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/inventory", map[string]any{"sku": sku, "available": available, "threshold": threshold})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newStack(t)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", nil).Code)

	s.stock(t, "SKU-A", 1, 5)
	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "low_stock_alerts_total 1")
}

func TestOrders_CreatePayGet(t *testing.T) {
	s := newStack(t)
	s.stock(t, "SKU-A", 100, 10)

	rec := s.do(t, http.MethodPost, "/orders", CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-A", Quantity: 2}}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[orderDoc](t, rec)
	assert.Equal(t, "CREATED", created.Status)
	assert.Equal(t, "20.00", created.TotalAmount)
	assert.Nil(t, created.PaymentID)

	rec = s.do(t, http.MethodPost, "/orders/"+created.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[orderDoc](t, rec)
	assert.Equal(t, "PAID", paid.Status)
	require.NotNil(t, paid.PaymentID)

	// the cached document reflects the payment
	cached, err := s.redis.Get(fmt.Sprintf(redisx.KeyOrder, created.ID))
	require.NoError(t, err)
	assert.Contains(t, cached, `"PAID"`)

	rec = s.do(t, http.MethodGet, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAID", decode[orderDoc](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/payments/order/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[payment.Payment](t, rec)
	assert.Equal(t, *paid.PaymentID, p.ID)
	assert.Equal(t, payment.StatusSuccess, p.Status)

	rec = s.do(t, http.MethodGet, "/inventory/SKU-A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 98, decode[inventory.Item](t, rec).Available)

	rec = s.do(t, http.MethodPost, "/orders/"+created.ID+"/pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrders_PaymentFailedAndCancelled(t *testing.T) {
	s := newStack(t)
	s.stock(t, "SKU-A", 100, 10)
	s.stock(t, "SKU-ODD", 5, 1)

	rec := s.do(t, http.MethodPost, "/orders", CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-ODD", Quantity: 1}}})
	require.Equal(t, http.StatusCreated, rec.Code)
	odd := decode[orderDoc](t, rec)

	rec = s.do(t, http.MethodPost, "/orders/"+odd.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[orderDoc](t, rec)
	assert.Equal(t, "CREATED", got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, orders.ReasonPaymentFailed, *got.CancellationReason)

	rec = s.do(t, http.MethodPost, "/orders", CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-A", Quantity: 200}}})
	require.Equal(t, http.StatusCreated, rec.Code)
	big := decode[orderDoc](t, rec)

	rec = s.do(t, http.MethodPost, "/orders/"+big.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[orderDoc](t, rec)
	assert.Equal(t, "CANCELLED", got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, orders.ReasonInsufficientInventory, *got.CancellationReason)

	rec = s.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orderDoc](t, rec), 2)
}

func TestOrders_IdempotentCreate(t *testing.T) {
	s := newStack(t)
	body := CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-A", Quantity: 1}}}

	first := s.do(t, http.MethodPost, "/orders", body, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, first.Code)
	second := s.do(t, http.MethodPost, "/orders", body, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	assert.Equal(t, decode[orderDoc](t, first).ID, decode[orderDoc](t, second).ID)
	assert.True(t, s.redis.Exists(fmt.Sprintf(redisx.KeyIdemOrderCreate, "abc-123")))
	assert.Equal(t, redisx.TTLIdempotency, s.redis.TTL(fmt.Sprintf(redisx.KeyIdemOrderCreate, "abc-123")))

	rec := s.do(t, http.MethodGet, "/orders", nil)
	assert.Len(t, decode[[]orderDoc](t, rec), 1)
}

func TestOrders_IdempotencyKeyInFlight(t *testing.T) {
	s := newStack(t)
	body := CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-A", Quantity: 1}}}
	s.redis.Set(fmt.Sprintf(redisx.KeyIdemOrderCreate, "busy"), redisx.Marker)

	rec := s.do(t, http.MethodPost, "/orders", body, "Idempotency-Key", "busy")
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Empty(t, decode[[]orderDoc](t, s.do(t, http.MethodGet, "/orders", nil)))

	// a failed create releases its key
	bad := CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-NOPE", Quantity: 1}}}
	rec = s.do(t, http.MethodPost, "/orders", bad, "Idempotency-Key", "retry-me")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, s.redis.Exists(fmt.Sprintf(redisx.KeyIdemOrderCreate, "retry-me")))

	rec = s.do(t, http.MethodPost, "/orders", body, "Idempotency-Key", "retry-me")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestOrders_ConcurrentIdempotentCreate(t *testing.T) {
	s := newStack(t)
	body := CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-A", Quantity: 1}}}

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = s.do(t, http.MethodPost, "/orders", body, "Idempotency-Key", "same").Code
		}()
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
			continue
		}
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, c)
	}
	assert.Equal(t, 1, created)
	assert.Len(t, decode[[]orderDoc](t, s.do(t, http.MethodGet, "/orders", nil)), 1)
}

func TestOrders_PayEvictsCachedDocument(t *testing.T) {
	s := newStack(t)
	s.stock(t, "SKU-A", 10, 1)

	rec := s.do(t, http.MethodPost, "/orders", CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-A", Quantity: 1}}})
	require.Equal(t, http.StatusCreated, rec.Code)
	stale := rec.Body.String()
	id := decode[orderDoc](t, rec).ID

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/orders/"+id+"/pay", nil).Code)

	// a CREATED document left behind by a lost cache write
	key := fmt.Sprintf(redisx.KeyOrder, id)
	s.redis.Set(key, stale)

	rec = s.do(t, http.MethodPost, "/orders/"+id+"/pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAID", decode[orderDoc](t, rec).Status)
	cached, err := s.redis.Get(key)
	require.NoError(t, err)
	assert.Contains(t, cached, `"PAID"`)
}

func TestOrders_Errors(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/orders", CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-NOPE", Quantity: 1}}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders", CreateOrderReq{Items: []orders.ItemRequest{{SKU: "SKU-A", Quantity: 0}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/orders/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/orders/missing/pay", nil).Code)
}

func TestProducts(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ps := decode[[]catalog.Product](t, rec)
	require.Len(t, ps, 2)
	assert.Equal(t, "SKU-A", ps[0].SKU)
}

func TestInventory_Lifecycle(t *testing.T) {
	s := newStack(t)
	s.stock(t, "SKU-A", 15, 10)

	rec := s.do(t, http.MethodPost, "/inventory", map[string]any{"sku": "SKU-A", "available": 1, "threshold": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/inventory", map[string]any{"sku": "SKU-X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/inventory/SKU-A", map[string]any{"threshold": 15})
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.EqualValues(t, 15, doc["available"])
	assert.Equal(t, true, doc["low_stock"])

	rec = s.do(t, http.MethodPost, "/inventory/SKU-A/deduct", DeductReq{Quantity: 16})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/inventory/SKU-A/deduct", DeductReq{Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/inventory/SKU-NOPE/deduct", DeductReq{Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/inventory/SKU-A/deduct", DeductReq{Quantity: 15})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[inventory.Item](t, rec).Available)

	rec = s.do(t, http.MethodGet, "/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/inventory/SKU-NOPE", nil).Code)
}

func TestInventory_AlertsAndEvents(t *testing.T) {
	s := newStack(t)
	s.stock(t, "SKU-A", 5, 10)  // low on create
	s.stock(t, "SKU-B", 50, 10) // not low
	rec := s.do(t, http.MethodPost, "/inventory/SKU-A/deduct", DeductReq{Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/inventory/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]alerts.Alert](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, 4, list[0].Available)
	assert.Equal(t, 5, list[1].Available)

	rec = s.do(t, http.MethodGet, "/inventory/alerts/SKU-A", nil)
	assert.Len(t, decode[[]alerts.Alert](t, rec), 2)
	rec = s.do(t, http.MethodGet, "/inventory/alerts/SKU-B", nil)
	assert.Empty(t, decode[[]alerts.Alert](t, rec))

	rec = s.do(t, http.MethodGet, "/inventory/alerts/count", nil)
	assert.EqualValues(t, 2, decode[map[string]int64](t, rec)["count"])

	rec = s.do(t, http.MethodGet, "/inventory/events", nil)
	assert.Len(t, decode[[]alerts.Event](t, rec), 2)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/inventory/alerts", nil).Code)
	rec = s.do(t, http.MethodGet, "/inventory/alerts/count", nil)
	assert.EqualValues(t, 0, decode[map[string]int64](t, rec)["count"])
	// alerts and events are reset independently
	assert.Len(t, s.alerts.Events(), 2)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/inventory/events", nil).Code)
	assert.Empty(t, s.alerts.Events())
}

type failingAlertStore struct{ *alerts.MemoryStore }

func (failingAlertStore) Append(context.Context, *alerts.Alert) error {
	return errors.New("alert store unavailable")
}

func TestInventory_AlertFailureStillAnswersItem(t *testing.T) {
	s := newStack(t)
	s.stock(t, "SKU-A", 20, 10)
	s.ledger.Alerts = &alerts.Pipeline{Store: failingAlertStore{alerts.NewMemoryStore()}, Log: alerts.NewMemoryLog()}

	rec := s.do(t, http.MethodPost, "/inventory/SKU-A/deduct", DeductReq{Quantity: 15})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decode[inventory.Item](t, rec).Available)
}

func TestPayments_Endpoints(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/payments/process", ProcessPaymentReq{OrderID: "o-1", Amount: decimal.RequireFromString("99.99"), Method: "CREDIT_CARD"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[payment.Payment](t, rec)
	assert.Equal(t, payment.StatusFailed, p.Status)

	rec = s.do(t, http.MethodGet, "/payments/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o-1", decode[payment.Payment](t, rec).OrderID)

	rec = s.do(t, http.MethodGet, "/payments", nil)
	assert.Len(t, decode[[]payment.Payment](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/payments/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/payments/order/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/payments/process", ProcessPaymentReq{Amount: decimal.NewFromInt(1)}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/payments/process", ProcessPaymentReq{OrderID: "o-2", Amount: decimal.NewFromInt(-1)}).Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.Wrap(orders.ErrOrderNotFound, "x"), http.StatusNotFound},
		{errors.Wrap(catalog.ErrProductNotFound, "x"), http.StatusNotFound},
		{errors.Wrap(orders.ErrInvalidState, "x"), http.StatusConflict},
		{errors.Wrap(inventory.ErrDuplicateSku, "x"), http.StatusConflict},
		{errors.Wrap(inventory.ErrInvalidInput, "x"), http.StatusBadRequest},
		{&orders.OrchestrationError{Op: "charge payment", Err: errors.New("eof")}, http.StatusBadGateway},
		{errors.Wrap(orders.ErrCollaboratorUnavailable, "x"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), c.err.Error())
	}
}
