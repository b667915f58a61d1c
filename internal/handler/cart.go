package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/mock-register/internal/domain/cart"
)

type cartLineView struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	LineSubtotal decimal.Decimal `json:"lineSubtotal"`
}

type cartView struct {
	Lines    []cartLineView  `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func viewOf(snap cart.Snapshot) cartView {
	lines := make([]cartLineView, len(snap.Lines))
	for i, l := range snap.Lines {
		lines[i] = cartLineView{
			Code:         l.Code,
			Description:  l.Description,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			LineSubtotal: l.LineSubtotal,
		}
	}
	return cartView{
		Lines:    lines,
		Subtotal: snap.Totals.Subtotal,
		Tax:      snap.Totals.Tax,
		Total:    snap.Totals.GrandTotal,
	}
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(h.ledger.Snapshot(r.Context())))
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.ledger.AddItem(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.NotifyRedraw()
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.ledger.SetQuantity(r.Context(), r.PathValue("code"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.NotifyRedraw()
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.RemoveAll(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.NotifyRedraw()
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Cancel(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	h.NotifyRedraw()
	writeJSON(w, http.StatusOK, viewOf(h.ledger.Snapshot(r.Context())))
}

func (h *Handler) handleHold(w http.ResponseWriter, r *http.Request) {
	id, err := h.ledger.Hold(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.NotifyRedraw()
	writeJSON(w, http.StatusOK, struct {
		ID string `json:"id"`
	}{ID: id})
}

func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.ledger.Retrieve(r.Context(), req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.NotifyRedraw()
	writeJSON(w, http.StatusOK, viewOf(snap))
}

type heldOrderView struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Total     decimal.Decimal `json:"total"`
}

func (h *Handler) handleListHeld(w http.ResponseWriter, r *http.Request) {
	orders, err := h.held.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]heldOrderView, len(orders))
	for i, o := range orders {
		views[i] = heldOrderView{ID: o.ID, CreatedAt: o.CreatedAt, Total: o.Total}
	}
	writeJSON(w, http.StatusOK, struct {
		Orders []heldOrderView `json:"orders"`
	}{Orders: views})
}
