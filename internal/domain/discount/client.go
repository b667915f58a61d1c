package discount

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single negotiation round trip. Checkout must never
// hang on a slow discount service.
const DefaultTimeout = 5 * time.Second

const maxResponseBody = 1 << 20

// Client negotiates with the discount service over HTTP.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a Client for the given endpoint URL. A non-positive
// timeout falls back to DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Negotiate posts the given lines and returns the parsed offer. Every
// failure mode wraps ErrUnavailable. Lines with non-positive quantity are
// not sent.
func (c *Client) Negotiate(ctx context.Context, lines []LineItem) (*Offer, error) {
	body := encodeRequest(lines)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		zctx.From(ctx).Warn("Discount service request failed", zap.Error(err))
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zctx.From(ctx).Warn("Discount service returned error status",
			zap.Int("status", resp.StatusCode))
		return nil, errors.Wrapf(ErrUnavailable, "status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	offer, err := decodeOffer(raw)
	if err != nil {
		zctx.From(ctx).Warn("Discount service response malformed", zap.Error(err))
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return offer, nil
}

// encodeRequest builds {"items":[{"upc","description","unitPrice","quantity"}]}.
func encodeRequest(lines []LineItem) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range lines {
					if l.Quantity <= 0 {
						continue
					}
					e.Obj(func(e *jx.Encoder) {
						e.Field("upc", func(e *jx.Encoder) { e.Str(l.UPC) })
						e.Field("description", func(e *jx.Encoder) { e.Str(l.Description) })
						e.Field("unitPrice", func(e *jx.Encoder) { e.RawStr(l.UnitPrice.String()) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

// decodeOffer parses {"discounts":[{"description","amount"}],"totalDiscount","discountedTotal"}.
func decodeOffer(raw []byte) (*Offer, error) {
	offer := &Offer{}
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "discounts":
			return d.Arr(func(d *jx.Decoder) error {
				var line OfferLine
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "description":
						s, err := d.Str()
						if err != nil {
							return err
						}
						line.Description = s
						return nil
					case "amount":
						amount, err := decodeDecimal(d)
						if err != nil {
							return err
						}
						line.Amount = amount
						return nil
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				offer.Lines = append(offer.Lines, line)
				return nil
			})
		case "totalDiscount":
			total, err := decodeDecimal(d)
			if err != nil {
				return err
			}
			offer.TotalDiscount = total
			return nil
		case "discountedTotal":
			sub, err := decodeDecimal(d)
			if err != nil {
				return err
			}
			offer.DiscountedSubtotal = sub
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode offer")
	}
	return offer, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	num, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	v, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse amount")
	}
	return v, nil
}
