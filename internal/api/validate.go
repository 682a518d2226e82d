package api

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sepetly/coupon-service/internal/domain/cart"
)

// maxBodyBytes bounds request bodies; carts are small.
const maxBodyBytes = 1 << 20

// validateRequest is the decoded POST /api/coupons/validate body.
type validateRequest struct {
	Code     string
	UserID   string
	Currency string
	Items    []cart.LineItem
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := decodeValidateRequest(r)
	if err != nil {
		h.validations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "bad_request")))
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.checker.Check(r.Context(), req.Code, req.UserID, req.Items)
	if err != nil {
		status, reason, msg := mapRejection(err)
		h.validations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", reason)))
		writeError(w, status, reason, msg)
		return
	}

	h.validations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "valid")))

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(true)
	e.FieldStart("discount")
	e.RawStr(res.DiscountAmount.String())
	if res.Currency != "" {
		e.FieldStart("currency")
		e.Str(res.Currency)
	}
	e.FieldStart("appliedGroup")
	e.Int(res.AppliedGroup)
	e.ObjEnd()

	writeJSON(w, http.StatusOK, e.Bytes())
}

// decodeValidateRequest parses the request body. Unknown fields are skipped;
// missing or malformed required fields produce an error.
func decodeValidateRequest(r *http.Request) (*validateRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	var req validateRequest
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "code")
			}
			req.Code = v
			return nil
		case "userId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "userId")
			}
			req.UserID = v
			return nil
		case "cart":
			return decodeCart(d, &req)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "parse request")
	}

	if req.Code == "" {
		return nil, errors.New("code is required")
	}
	return &req, nil
}

func decodeCart(d *jx.Decoder, req *validateRequest) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "currency":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "currency")
			}
			req.Currency = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeLineItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

func decodeLineItem(d *jx.Decoder) (cart.LineItem, error) {
	var li cart.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "productId")
			}
			li.ProductID = v
			return nil
		case "categoryId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "categoryId")
			}
			li.CategoryID = v
			return nil
		case "price":
			n, err := d.Num()
			if err != nil {
				return errors.Wrap(err, "price")
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return errors.Wrap(err, "price")
			}
			li.Price = price
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			li.Quantity = v
			return nil
		default:
			return d.Skip()
		}
	})
	return li, err
}
