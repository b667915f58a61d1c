// Package handler exposes the register core over a small JSON HTTP API,
// consumed by the rendering front end.
package handler

import (
	"net/http"
	"sync/atomic"

	"github.com/xenking/mock-register/internal/checkout"
	"github.com/xenking/mock-register/internal/domain/cart"
	"github.com/xenking/mock-register/internal/domain/popularity"
	"github.com/xenking/mock-register/internal/scanner"
)

// Handler wires the HTTP surface to the register core, delegating all
// business logic to the injected components.
type Handler struct {
	ledger     *cart.Ledger
	classifier *scanner.Classifier
	checkout   *checkout.Service
	ranker     *popularity.Ranker
	held       cart.HeldOrderStore
	sales      cart.SaleRecorder

	// displayRev increments on every committed redraw so the front end
	// can poll for changes cheaply.
	displayRev atomic.Int64
}

// NewHandler constructs a Handler with the required core dependencies.
func NewHandler(
	ledger *cart.Ledger,
	checkoutSvc *checkout.Service,
	ranker *popularity.Ranker,
	held cart.HeldOrderStore,
	sales cart.SaleRecorder,
) *Handler {
	return &Handler{
		ledger:   ledger,
		checkout: checkoutSvc,
		ranker:   ranker,
		held:     held,
		sales:    sales,
	}
}

// SetClassifier attaches the input classifier. Set after construction
// because the classifier's commit callback needs the handler's ledger wiring.
func (h *Handler) SetClassifier(c *scanner.Classifier) {
	h.classifier = c
}

// NotifyRedraw bumps the display revision; wired as the classifier's redraw
// callback.
func (h *Handler) NotifyRedraw() {
	h.displayRev.Add(1)
}

// Routes registers all endpoints on the given mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/scanner/keys", h.handleScannerKeys)
	mux.HandleFunc("POST /api/scanner/inject", h.handleScannerInject)

	mux.HandleFunc("GET /api/cart", h.handleGetCart)
	mux.HandleFunc("POST /api/cart/items", h.handleAddItem)
	mux.HandleFunc("PUT /api/cart/items/{code}", h.handleSetQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{code}", h.handleRemoveItem)
	mux.HandleFunc("POST /api/cart/cancel", h.handleCancel)
	mux.HandleFunc("POST /api/cart/hold", h.handleHold)
	mux.HandleFunc("GET /api/cart/held", h.handleListHeld)
	mux.HandleFunc("POST /api/cart/retrieve", h.handleRetrieve)

	mux.HandleFunc("POST /api/checkout/offer", h.handleOffer)
	mux.HandleFunc("POST /api/checkout/pay", h.handlePay)

	mux.HandleFunc("GET /api/shortcuts", h.handleShortcuts)
	mux.HandleFunc("GET /api/sales", h.handleListSales)
	mux.HandleFunc("GET /api/display", h.handleDisplay)
}
