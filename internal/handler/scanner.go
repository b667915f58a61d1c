package handler

import (
	"net/http"
	"unicode/utf8"
)

// handleScannerKeys feeds raw key events into the classifier. The front end
// forwards every keystroke with an explicit manualEntry flag instead of the
// classifier inspecting focus state itself.
func (h *Handler) handleScannerKeys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Char        string `json:"char"`
		ManualEntry bool   `json:"manualEntry"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ch, size := utf8.DecodeRuneInString(req.Char)
	if size == 0 || ch == utf8.RuneError {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "char must be a single character",
		})
		return
	}
	h.classifier.HandleKey(ch, req.ManualEntry)
	w.WriteHeader(http.StatusAccepted)
}

// handleScannerInject commits codes directly, bypassing timing
// classification. Used by quick-key shortcuts; multiple codes are batched so
// the display redraws once.
func (h *Handler) handleScannerInject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	batch := h.classifier.BeginBatch()
	for _, code := range req.Codes {
		h.classifier.InjectCode(code)
	}
	batch.End()
	writeJSON(w, http.StatusOK, viewOf(h.ledger.Snapshot(r.Context())))
}

type displayView struct {
	Revision int64 `json:"revision"`
}

// handleDisplay reports the display revision, bumped on every redraw, so the
// front end can poll for changes.
func (h *Handler) handleDisplay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, displayView{Revision: h.displayRev.Load()})
}
