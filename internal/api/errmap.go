package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/sepetly/coupon-service/internal/domain/cart"
	"github.com/sepetly/coupon-service/internal/domain/coupon"
)

// mapRejection translates engine errors into an HTTP status, a stable
// machine-readable reason code, and a message. Anything unrecognized is an
// internal error; its details stay out of the response.
func mapRejection(err error) (status int, reason, message string) {
	var lineErr *cart.InvalidLineError
	if errors.As(err, &lineErr) {
		return http.StatusBadRequest, "invalid_cart", lineErr.Error()
	}

	switch {
	case errors.Is(err, coupon.ErrCouponNotFound):
		return http.StatusNotFound, "coupon_not_found", "coupon not found"
	case errors.Is(err, coupon.ErrCouponDraft):
		return http.StatusUnprocessableEntity, "coupon_draft", "coupon is not active"
	case errors.Is(err, coupon.ErrCouponPaused):
		return http.StatusUnprocessableEntity, "coupon_paused", "coupon is not active"
	case errors.Is(err, coupon.ErrCouponNotStarted):
		return http.StatusUnprocessableEntity, "coupon_not_started", "coupon is not active yet"
	case errors.Is(err, coupon.ErrCouponExpired):
		return http.StatusUnprocessableEntity, "coupon_expired", "coupon expired"
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return http.StatusUnprocessableEntity, "usage_limit_reached", "coupon usage limit reached"
	case errors.Is(err, coupon.ErrPerUserLimitReached):
		return http.StatusUnprocessableEntity, "per_user_limit_reached", "coupon usage limit reached for this user"
	case errors.Is(err, coupon.ErrRuleNotMatched):
		return http.StatusUnprocessableEntity, "rule_not_matched", "cart does not qualify for this coupon"
	case errors.Is(err, coupon.ErrNotApplicable):
		return http.StatusUnprocessableEntity, "not_applicable", "coupon grants no discount for this cart"
	}

	return http.StatusInternalServerError, "internal_error", "internal error"
}

// writeError serializes {"error":{"reason":...,"message":...}}.
func writeError(w http.ResponseWriter, status int, reason, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.ObjStart()
	e.FieldStart("reason")
	e.Str(reason)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	e.ObjEnd()

	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
