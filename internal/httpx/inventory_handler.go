package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/alerts"
	"github.com/ariefcatur/go-order-saga/internal/inventory"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

type InventoryHandler struct {
	Ledger *inventory.Ledger
	Alerts *alerts.Service
	Logger *log.Entry
}

type CreateItemReq struct {
	SKU       string `json:"sku"`
	Available *int   `json:"available"`
	Threshold *int   `json:"threshold"`
}

type DeductReq struct {
	Quantity int `json:"quantity"`
}

type itemResp struct {
	inventory.Item
	LowStock bool `json:"low_stock"`
}

func toItemResp(it inventory.Item) itemResp {
	return itemResp{Item: it, LowStock: it.IsLowStock()}
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/low-stock", h.lowStock)
		r.Get("/events", h.events)
		r.Delete("/events", h.clearEvents)
		r.Get("/alerts", h.listAlerts)
		r.Delete("/alerts", h.deleteAlerts)
		r.Get("/alerts/count", h.countAlerts)
		r.Get("/alerts/{sku}", h.alertsBySKU)
		r.Get("/{sku}", h.get)
		r.Put("/{sku}", h.update)
		r.Post("/{sku}/deduct", h.deduct)
	})
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Ledger.Get(ctx, chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResp(*it))
}

func (h *InventoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Available == nil || req.Threshold == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "available and threshold are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Ledger.Create(ctx, req.SKU, *req.Available, *req.Threshold)
	h.respondMutation(w, http.StatusCreated, it, err)
}

func (h *InventoryHandler) update(w http.ResponseWriter, r *http.Request) {
	var req inventory.UpdateInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Ledger.Update(ctx, chi.URLParam(r, "sku"), req)
	h.respondMutation(w, http.StatusOK, it, err)
}

func (h *InventoryHandler) deduct(w http.ResponseWriter, r *http.Request) {
	var req DeductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Ledger.Deduct(ctx, chi.URLParam(r, "sku"), req.Quantity)
	h.respondMutation(w, http.StatusOK, it, err)
}

// respondMutation answers with the item whenever the mutation was applied,
// even if raising the low-stock alert afterwards failed.
func (h *InventoryHandler) respondMutation(w http.ResponseWriter, code int, it *inventory.Item, err error) {
	if it == nil {
		writeError(w, err)
		return
	}
	if err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("sku", it.SKU).Error("low-stock alert failed")
	}
	writeJSON(w, code, toItemResp(*it))
}

func (h *InventoryHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.Ledger.ListLowStock(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]itemResp, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResp(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InventoryHandler) events(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Alerts.Events())
}

func (h *InventoryHandler) clearEvents(w http.ResponseWriter, r *http.Request) {
	h.Alerts.ClearEvents()
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) listAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Alerts.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *InventoryHandler) alertsBySKU(w http.ResponseWriter, r *http.Request) {
	list, err := h.Alerts.ListBySKU(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *InventoryHandler) countAlerts(w http.ResponseWriter, r *http.Request) {
	n, err := h.Alerts.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *InventoryHandler) deleteAlerts(w http.ResponseWriter, r *http.Request) {
	if err := h.Alerts.DeleteAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
