// Command seed-db creates the schema and loads a few example coupons so the
// API can be exercised locally.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/sepetly/coupon-service/internal/domain/coupon"
	"github.com/sepetly/coupon-service/internal/repository"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)

	if err := seedCoupons(ctx, repo); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

type seedEntry struct {
	cpn   coupon.Coupon
	rules []coupon.Rule
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding example coupons")

	ends := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)

	entries := []seedEntry{
		{
			cpn: coupon.Coupon{
				Code:          "SUMMER10",
				Status:        coupon.StatusActive,
				DiscountType:  coupon.DiscountPercent,
				AmountPercent: decimal.NewFromInt(10),
				Currency:      "TRY",
				MaxDiscount:   decimal.NewFromInt(100),
				EndsAt:        &ends,
				UsageLimit:    1000,
				PerUserLimit:  1,
			},
			rules: []coupon.Rule{
				{
					ScopeType: coupon.ScopeCartTotal,
					MinAmount: decimal.NewFromInt(200),
					Group:     1,
					GroupOp:   coupon.GroupAnd,
				},
			},
		},
		{
			cpn: coupon.Coupon{
				Code:         "BOGO1",
				Status:       coupon.StatusActive,
				DiscountType: coupon.DiscountBogo,
				Currency:     "TRY",
			},
			rules: []coupon.Rule{
				{
					ScopeType:        coupon.ScopeCartTotal,
					Group:            1,
					GroupOp:          coupon.GroupAnd,
					BogoBuyQty:       1,
					BogoGetQty:       1,
					BogoSameItemOnly: true,
					BogoTargetScope:  coupon.BogoSameProduct,
				},
			},
		},
		{
			cpn: coupon.Coupon{
				Code:         "ELECTRO50",
				Status:       coupon.StatusActive,
				DiscountType: coupon.DiscountAmount,
				AmountFixed:  decimal.NewFromInt(50),
				Currency:     "TRY",
			},
			rules: []coupon.Rule{
				// Group 1: electronics cart worth at least 500.
				{
					ScopeType:    coupon.ScopeCategory,
					ScopeValueID: "electronics",
					MinAmount:    decimal.NewFromInt(500),
					Group:        1,
					GroupOp:      coupon.GroupAnd,
				},
				{
					ScopeType: coupon.ScopeCartTotal,
					MinAmount: decimal.NewFromInt(750),
					Group:     1,
					GroupOp:   coupon.GroupAnd,
				},
				// Group 2: alternative path, any three of the featured product.
				{
					ScopeType:    coupon.ScopeProduct,
					ScopeValueID: "prod-featured",
					MinQty:       3,
					Group:        2,
					GroupOp:      coupon.GroupOr,
				},
			},
		},
	}

	for _, e := range entries {
		if err := repo.Upsert(ctx, &e.cpn, e.rules); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", e.cpn.Code)
		}
		slog.Info("upserted coupon",
			slog.String("code", e.cpn.Code),
			slog.String("type", string(e.cpn.DiscountType)),
		)
	}

	return nil
}
