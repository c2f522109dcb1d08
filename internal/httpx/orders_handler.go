package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/catalog"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/ariefcatur/go-order-saga/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type ProductLister interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

type OrdersHandler struct {
	Service *orders.Service
	Catalog ProductLister
	Redis   *redis.Client // optional; enables the read cache and idempotent create
	Logger  *log.Entry
}

type CreateOrderReq struct {
	Items []orders.ItemRequest `json:"items"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/pay", h.payOrder)
	r.Get("/products", h.listProducts)
}

// createOrder honours an Idempotency-Key header: a repeated key answers with
// the order created the first time. The key is claimed before the order is
// created so concurrent repeats cannot both create one.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	idemKey := ""
	if k := r.Header.Get("Idempotency-Key"); k != "" && h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemOrderCreate, k)
		claimed, err := redisx.MarkOnce(ctx, h.Redis, key, redisx.TTLIdempotency)
		switch {
		case err != nil:
			h.warn(err, key, "idempotency claim failed")
		case claimed:
			idemKey = key
		default:
			h.replay(ctx, w, key)
			return
		}
	}

	o, err := h.Service.CreateOrder(ctx, req.Items)
	if err != nil {
		if idemKey != "" {
			_ = h.Redis.Del(ctx, idemKey).Err()
		}
		writeError(w, err)
		return
	}

	if idemKey != "" {
		if err := h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err(); err != nil {
			h.warn(err, idemKey, "idempotency record failed")
		}
	}
	h.cache(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

// replay answers a request whose Idempotency-Key was already claimed.
func (h *OrdersHandler) replay(ctx context.Context, w http.ResponseWriter, key string) {
	id, err := h.Redis.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		writeError(w, err)
		return
	}
	if id == "" || id == redisx.Marker {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "request with this Idempotency-Key is in progress"})
		return
	}
	o, err := h.Service.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// the saga makes several remote calls, each with its own retries
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	h.evict(ctx, id)
	o, err := h.Service.PayOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cache(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, fmt.Sprintf(redisx.KeyOrder, id)).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	// 2) store; only fill a miss so a slow read cannot overwrite a fresher write
	o, err := h.Service.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.fill(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	all, err := h.Service.ListOrders(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// cache stores o as the current document. A failed write evicts the key so
// readers fall back to the store.
func (h *OrdersHandler) cache(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	b, err := json.Marshal(o)
	if err == nil {
		err = h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err()
	}
	if err != nil {
		h.warn(err, key, "order cache write failed")
		h.evict(ctx, o.ID)
	}
}

func (h *OrdersHandler) fill(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	_ = h.Redis.SetNX(ctx, fmt.Sprintf(redisx.KeyOrder, o.ID), b, redisx.TTLOrderCache).Err()
}

func (h *OrdersHandler) evict(ctx context.Context, id string) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrder, id)
	if err := h.Redis.Del(ctx, key).Err(); err != nil {
		h.warn(err, key, "order cache evict failed")
	}
}

func (h *OrdersHandler) warn(err error, key, msg string) {
	if h.Logger != nil {
		h.Logger.WithError(err).WithField("key", key).Warn(msg)
	}
}
