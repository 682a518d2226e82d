package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/sepetly/coupon-service/internal/domain/cart"
	"github.com/sepetly/coupon-service/internal/domain/coupon"
)

type stubChecker struct {
	res *coupon.Result
	err error

	gotCode   string
	gotUserID string
	gotItems  []cart.LineItem
}

func (s *stubChecker) Check(_ context.Context, code, userID string, items []cart.LineItem) (*coupon.Result, error) {
	s.gotCode = code
	s.gotUserID = userID
	s.gotItems = items
	return s.res, s.err
}

type stubRedeemer struct {
	err     error
	gotCode string
}

func (s *stubRedeemer) Redeem(_ context.Context, code, _ string) error {
	s.gotCode = code
	return s.err
}

func newTestHandler(t *testing.T, checker coupon.Checker, redeemer coupon.Redeemer) http.Handler {
	t.Helper()
	h, err := NewHandler(checker, redeemer, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Routes(mux)
	return mux
}

type errorResponse struct {
	Error struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestValidateCoupon(t *testing.T) {
	validBody := `{
		"code": "SUMMER10",
		"userId": "u1",
		"cart": {
			"currency": "TRY",
			"items": [
				{"productId": "p1", "categoryId": "books", "price": 150.00, "quantity": 2}
			]
		}
	}`

	t.Run("valid coupon", func(t *testing.T) {
		checker := &stubChecker{res: &coupon.Result{
			DiscountAmount: decimal.RequireFromString("30"),
			Currency:       "TRY",
			AppliedGroup:   1,
		}}
		h := newTestHandler(t, checker, &stubRedeemer{})

		rec := doJSON(t, h, "/api/coupons/validate", validBody)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp struct {
			Valid        bool            `json:"valid"`
			Discount     decimal.Decimal `json:"discount"`
			Currency     string          `json:"currency"`
			AppliedGroup int             `json:"appliedGroup"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.True(t, decimal.RequireFromString("30").Equal(resp.Discount))
		assert.Equal(t, "TRY", resp.Currency)
		assert.Equal(t, 1, resp.AppliedGroup)

		assert.Equal(t, "SUMMER10", checker.gotCode)
		assert.Equal(t, "u1", checker.gotUserID)
		require.Len(t, checker.gotItems, 1)
		assert.Equal(t, "p1", checker.gotItems[0].ProductID)
		assert.Equal(t, 2, checker.gotItems[0].Quantity)
	})

	t.Run("missing code is a bad request", func(t *testing.T) {
		h := newTestHandler(t, &stubChecker{}, &stubRedeemer{})

		rec := doJSON(t, h, "/api/coupons/validate", `{"userId":"u1"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_request", resp.Error.Reason)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		h := newTestHandler(t, &stubChecker{}, &stubRedeemer{})

		rec := doJSON(t, h, "/api/coupons/validate", `{"code":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		checker := &stubChecker{res: &coupon.Result{DiscountAmount: decimal.NewFromInt(5)}}
		h := newTestHandler(t, checker, &stubRedeemer{})

		rec := doJSON(t, h, "/api/coupons/validate", `{"code":"X","extra":{"a":1},"cart":{"items":[]}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "X", checker.gotCode)
	})

	t.Run("rejections map to reason codes", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantReason string
		}{
			{"not found", coupon.ErrCouponNotFound, http.StatusNotFound, "coupon_not_found"},
			{"draft", coupon.ErrCouponDraft, http.StatusUnprocessableEntity, "coupon_draft"},
			{"paused", coupon.ErrCouponPaused, http.StatusUnprocessableEntity, "coupon_paused"},
			{"not started", coupon.ErrCouponNotStarted, http.StatusUnprocessableEntity, "coupon_not_started"},
			{"expired", coupon.ErrCouponExpired, http.StatusUnprocessableEntity, "coupon_expired"},
			{"usage limit", coupon.ErrUsageLimitReached, http.StatusUnprocessableEntity, "usage_limit_reached"},
			{"per user limit", coupon.ErrPerUserLimitReached, http.StatusUnprocessableEntity, "per_user_limit_reached"},
			{"rule not matched", coupon.ErrRuleNotMatched, http.StatusUnprocessableEntity, "rule_not_matched"},
			{"not applicable", coupon.ErrNotApplicable, http.StatusUnprocessableEntity, "not_applicable"},
			{"invalid cart", &cart.InvalidLineError{Index: 1, Reason: "quantity must be greater than 0"}, http.StatusBadRequest, "invalid_cart"},
			{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newTestHandler(t, &stubChecker{err: tt.err}, &stubRedeemer{})

				rec := doJSON(t, h, "/api/coupons/validate", validBody)
				require.Equal(t, tt.wantStatus, rec.Code)

				var resp errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantReason, resp.Error.Reason)
			})
		}
	})

	t.Run("internal error hides details", func(t *testing.T) {
		h := newTestHandler(t, &stubChecker{err: errors.New("pg: connection refused")}, &stubRedeemer{})

		rec := doJSON(t, h, "/api/coupons/validate", validBody)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		h := newTestHandler(t, &stubChecker{}, &stubRedeemer{})

		req := httptest.NewRequest(http.MethodGet, "/api/coupons/validate", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRedeemCoupon(t *testing.T) {
	t.Run("successful redemption", func(t *testing.T) {
		redeemer := &stubRedeemer{}
		h := newTestHandler(t, &stubChecker{}, redeemer)

		rec := doJSON(t, h, "/api/coupons/redeem", `{"code":"SUMMER10","userId":"u1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"redeemed":true}`, rec.Body.String())
		assert.Equal(t, "SUMMER10", redeemer.gotCode)
	})

	t.Run("missing code is a bad request", func(t *testing.T) {
		h := newTestHandler(t, &stubChecker{}, &stubRedeemer{})

		rec := doJSON(t, h, "/api/coupons/redeem", `{"userId":"u1"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("limit errors map to reason codes", func(t *testing.T) {
		h := newTestHandler(t, &stubChecker{}, &stubRedeemer{err: coupon.ErrUsageLimitReached})

		rec := doJSON(t, h, "/api/coupons/redeem", `{"code":"SUMMER10","userId":"u1"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "usage_limit_reached", resp.Error.Reason)
	})

	t.Run("unknown code maps to 404", func(t *testing.T) {
		h := newTestHandler(t, &stubChecker{}, &stubRedeemer{err: coupon.ErrCouponNotFound})

		rec := doJSON(t, h, "/api/coupons/redeem", `{"code":"BOGUS","userId":"u1"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
