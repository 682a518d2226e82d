package api

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// redeemCoupon records a completed redemption. Called by the order pipeline
// once an order using the coupon is committed; it does not re-validate the
// cart.
func (h *Handler) redeemCoupon(w http.ResponseWriter, r *http.Request) {
	code, userID, err := decodeRedeemRequest(r)
	if err != nil {
		h.redemptions.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "bad_request")))
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.redeemer.Redeem(r.Context(), code, userID); err != nil {
		status, reason, msg := mapRejection(err)
		h.redemptions.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", reason)))
		writeError(w, status, reason, msg)
		return
	}

	h.redemptions.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "redeemed")))

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("redeemed")
	e.Bool(true)
	e.ObjEnd()

	writeJSON(w, http.StatusOK, e.Bytes())
}

func decodeRedeemRequest(r *http.Request) (code, userID string, _ error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", "", errors.Wrap(err, "read body")
	}

	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "code")
			}
			code = v
			return nil
		case "userId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "userId")
			}
			userID = v
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", "", errors.Wrap(err, "parse request")
	}

	if code == "" {
		return "", "", errors.New("code is required")
	}
	return code, userID, nil
}
