// Command discount-stub is a stand-in discount service for local development
// and integration tests. It speaks the negotiation protocol: POST with
// {"items":[...]} in, {"discounts":[...],"totalDiscount","discountedTotal"}
// out. Orders over the threshold get a flat percentage off; every response
// also carries a zero-amount candidate line, as real rule engines do for
// rules that did not qualify.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/shopspring/decimal"
)

var (
	threshold = decimal.RequireFromString("10")
	rate      = decimal.RequireFromString("0.05")
)

type itemReq struct {
	UPC         string          `json:"upc"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

type discountLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type offerResp struct {
	Discounts       []discountLine  `json:"discounts"`
	TotalDiscount   decimal.Decimal `json:"totalDiscount"`
	DiscountedTotal decimal.Decimal `json:"discountedTotal"`
}

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "0.0.0.0:9090", "listen address")
	flag.Parse()

	http.HandleFunc("POST /discounts", handleDiscounts)
	// Reachability probes.
	http.HandleFunc("HEAD /discounts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	slog.Info("discount stub listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func handleDiscounts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []itemReq `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	subtotal := decimal.Zero
	for _, it := range req.Items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	resp := offerResp{
		Discounts:       []discountLine{{Description: "Weekend promo", Amount: decimal.Zero}},
		TotalDiscount:   decimal.Zero,
		DiscountedTotal: subtotal,
	}
	if subtotal.GreaterThan(threshold) {
		amount := subtotal.Mul(rate).Round(2)
		resp.Discounts = append(resp.Discounts, discountLine{
			Description: "5% off orders over $10",
			Amount:      amount,
		})
		resp.TotalDiscount = amount
		resp.DiscountedTotal = subtotal.Sub(amount)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
