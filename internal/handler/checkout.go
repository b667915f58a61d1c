package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mock-register/internal/checkout"
	"github.com/xenking/mock-register/internal/domain/cart"
	"github.com/xenking/mock-register/internal/domain/discount"
)

type offerLineView struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type offerView struct {
	Trivial     bool            `json:"trivial"`
	Unavailable bool            `json:"unavailable,omitempty"`
	Lines       []offerLineView `json:"lines"`
	Total       decimal.Decimal `json:"totalDiscount"`
	Subtotal    decimal.Decimal `json:"discountedSubtotal"`
}

// handleOffer runs one negotiation round. An unavailable discount service is
// not an error at this level: the sale proceeds with zero discount and the
// response says so.
func (h *Handler) handleOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.checkout.Offer(r.Context())
	if err != nil {
		if errors.Is(err, discount.ErrUnavailable) {
			zctx.From(r.Context()).Warn("Proceeding without discount", zap.Error(err))
			writeJSON(w, http.StatusOK, offerView{
				Trivial:     true,
				Unavailable: true,
				Lines:       []offerLineView{},
			})
			return
		}
		writeError(w, r, err)
		return
	}

	lines := offer.NonZeroLines()
	views := make([]offerLineView, len(lines))
	for i, l := range lines {
		views[i] = offerLineView{Description: l.Description, Amount: l.Amount}
	}
	writeJSON(w, http.StatusOK, offerView{
		Trivial:  offer.Trivial(),
		Lines:    views,
		Total:    offer.TotalDiscount,
		Subtotal: offer.DiscountedSubtotal,
	})
}

type payRequest struct {
	Method   string `json:"method"`
	Amount   string `json:"amount,omitempty"`
	Discount struct {
		Lines []offerLineView `json:"lines"`
		Total decimal.Decimal `json:"total"`
	} `json:"discount"`
}

type receiptView struct {
	SaleID   string          `json:"saleId"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Tendered decimal.Decimal `json:"tendered"`
	Change   decimal.Decimal `json:"change"`
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if !decodeBody(w, r, &req) {
		return
	}

	payReq := checkout.PayRequest{Method: checkout.Method(req.Method)}
	if payReq.Method == checkout.MethodCashCustom {
		amount, err := checkout.ParseTenderAmount(req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		payReq.Amount = amount
	}
	if len(req.Discount.Lines) > 0 || !req.Discount.Total.IsZero() {
		lines := make([]cart.DiscountLine, len(req.Discount.Lines))
		for i, l := range req.Discount.Lines {
			lines[i] = cart.DiscountLine{Description: l.Description, Amount: l.Amount}
		}
		payReq.Discount = cart.AppliedDiscount{Lines: lines, Total: req.Discount.Total}
	}

	receipt, err := h.checkout.Pay(r.Context(), payReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.NotifyRedraw()
	writeJSON(w, http.StatusOK, receiptView{
		SaleID:   receipt.SaleID,
		Subtotal: receipt.Subtotal,
		Discount: receipt.Discount,
		Tax:      receipt.Tax,
		Total:    receipt.Total,
		Tendered: receipt.Tendered,
		Change:   receipt.Change,
	})
}

type shortcutView struct {
	Label       string `json:"label"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Count       int64  `json:"count"`
}

func (h *Handler) handleShortcuts(w http.ResponseWriter, r *http.Request) {
	slots := h.ranker.Current()
	views := make([]shortcutView, len(slots))
	for i, s := range slots {
		views[i] = shortcutView{Label: s.Label, Code: s.Code, Description: s.Description, Count: s.Count}
	}
	writeJSON(w, http.StatusOK, struct {
		Shortcuts []shortcutView `json:"shortcuts"`
	}{Shortcuts: views})
}

type saleView struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Total     decimal.Decimal `json:"total"`
}

func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.sales.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]saleView, len(sales))
	for i, s := range sales {
		views[i] = saleView{ID: s.ID, CreatedAt: s.CreatedAt, Total: s.Total}
	}
	writeJSON(w, http.StatusOK, struct {
		Sales []saleView `json:"sales"`
	}{Sales: views})
}
