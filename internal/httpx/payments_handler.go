package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-order-saga/internal/payment"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type PaymentsHandler struct {
	Engine *payment.Engine
}

type ProcessPaymentReq struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method"`
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/process", h.process)
		r.Get("/order/{orderId}", h.byOrder)
		r.Get("/{id}", h.get)
	})
}

func (h *PaymentsHandler) process(w http.ResponseWriter, r *http.Request) {
	var req ProcessPaymentReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	p, err := h.Engine.Process(r.Context(), req.OrderID, req.Amount, req.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PaymentsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentsHandler) byOrder(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.ByOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentsHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Engine.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
