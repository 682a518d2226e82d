// Package api exposes the coupon engine over HTTP. Handlers are hand-written
// over net/http with jx for JSON; the engine's typed rejections are mapped
// to stable machine-readable reason codes.
package api

import (
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/sepetly/coupon-service/internal/domain/coupon"
)

// Handler serves the coupon validation and redemption endpoints.
type Handler struct {
	checker  coupon.Checker
	redeemer coupon.Redeemer

	validations metric.Int64Counter
	redemptions metric.Int64Counter
}

// NewHandler constructs a Handler with the required collaborators and
// registers its metrics on the given meter.
func NewHandler(checker coupon.Checker, redeemer coupon.Redeemer, meter metric.Meter) (*Handler, error) {
	validations, err := meter.Int64Counter("coupon_validations_total",
		metric.WithDescription("Coupon validation requests by outcome"),
	)
	if err != nil {
		return nil, err
	}

	redemptions, err := meter.Int64Counter("coupon_redemptions_total",
		metric.WithDescription("Coupon redemption requests by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		checker:     checker,
		redeemer:    redeemer,
		validations: validations,
		redemptions: redemptions,
	}, nil
}

// Routes registers the API endpoints on the given mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons/validate", h.validateCoupon)
	mux.HandleFunc("POST /api/coupons/redeem", h.redeemCoupon)
}
