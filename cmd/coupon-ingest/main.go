// Command coupon-ingest bulk loads coupon definitions from gzipped JSONL
// files into PostgreSQL. Each input line is one coupon document with its
// rules embedded; the first occurrence of a code wins and later duplicates
// are skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sepetly/coupon-service/internal/domain/coupon"
	"github.com/sepetly/coupon-service/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// couponLine is one decoded JSONL document.
type couponLine struct {
	cpn   *coupon.Coupon
	rules []coupon.Rule
}

func main() {
	var (
		databaseURL string
		files       string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&files, "files", "", "comma-separated list of .jsonl.gz coupon files")
	flag.IntVar(&workers, "workers", 8, "number of concurrent upsert workers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if files == "" {
		slog.Error("at least one input file is required: set --files")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, strings.Split(files, ","), workers); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, workers int) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)

	// Seen-code filter: duplicate codes across files are skipped so the
	// first definition wins deterministically.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	lines := make(chan couponLine, workers*2)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(lines)
		for _, f := range files {
			if err := streamFile(ctx, f, seen, lines); err != nil {
				return errors.Wrapf(err, "ingest %s", f)
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			for line := range lines {
				if err := repo.Upsert(ctx, line.cpn, line.rules); err != nil {
					return errors.Wrapf(err, "upsert coupon %s", line.cpn.Code)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// streamFile decodes one gzipped JSONL file and sends unseen coupons to out.
func streamFile(ctx context.Context, path string, seen *bloom.BloomFilter, out chan<- couponLine) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	var total, skipped uint64
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		total++
		cpn, rules, err := decodeCouponLine(raw)
		if err != nil {
			return errors.Wrapf(err, "line %d", total)
		}

		key := strings.ToUpper(cpn.Code)
		if seen.TestString(key) {
			skipped++
			continue
		}
		seen.AddString(key)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- couponLine{cpn: cpn, rules: rules}:
		}

		if total%progressEvery == 0 {
			slog.Info("ingest progress",
				slog.String("file", path),
				slog.Uint64("lines", total),
				slog.Uint64("skipped", skipped),
			)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}

	slog.Info("file complete",
		slog.String("file", path),
		slog.Uint64("lines", total),
		slog.Uint64("skipped", skipped),
	)
	return nil
}

// decodeCouponLine parses one JSONL coupon document.
func decodeCouponLine(data []byte) (*coupon.Coupon, []coupon.Rule, error) {
	var (
		cpn   coupon.Coupon
		rules []coupon.Rule
	)
	cpn.Status = coupon.StatusActive

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "code")
			}
			cpn.Code = v
			return nil
		case "status":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "status")
			}
			st, err := coupon.ParseStatus(v)
			if err != nil {
				return err
			}
			cpn.Status = st
			return nil
		case "discountType":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "discountType")
			}
			dt, err := coupon.ParseDiscountType(v)
			if err != nil {
				return err
			}
			cpn.DiscountType = dt
			return nil
		case "amountFixed":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "amountFixed")
			}
			cpn.AmountFixed = v
			return nil
		case "amountPercent":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "amountPercent")
			}
			cpn.AmountPercent = v
			return nil
		case "maxDiscount":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "maxDiscount")
			}
			cpn.MaxDiscount = v
			return nil
		case "currency":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "currency")
			}
			cpn.Currency = v
			return nil
		case "startsAt":
			t, err := decodeTime(d)
			if err != nil {
				return errors.Wrap(err, "startsAt")
			}
			cpn.StartsAt = t
			return nil
		case "endsAt":
			t, err := decodeTime(d)
			if err != nil {
				return errors.Wrap(err, "endsAt")
			}
			cpn.EndsAt = t
			return nil
		case "usageLimit":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "usageLimit")
			}
			cpn.UsageLimit = v
			return nil
		case "perUserLimit":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "perUserLimit")
			}
			cpn.PerUserLimit = v
			return nil
		case "rules":
			return d.Arr(func(d *jx.Decoder) error {
				r, err := decodeRule(d)
				if err != nil {
					return err
				}
				rules = append(rules, r)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, nil, err
	}

	if cpn.Code == "" {
		return nil, nil, errors.New("code is required")
	}
	if cpn.DiscountType == "" {
		return nil, nil, errors.New("discountType is required")
	}
	return &cpn, rules, nil
}

func decodeRule(d *jx.Decoder) (coupon.Rule, error) {
	var r coupon.Rule
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "scopeType":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "scopeType")
			}
			st, err := coupon.ParseScopeType(v)
			if err != nil {
				return err
			}
			r.ScopeType = st
			return nil
		case "scopeValueId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "scopeValueId")
			}
			r.ScopeValueID = v
			return nil
		case "minQty":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "minQty")
			}
			r.MinQty = v
			return nil
		case "minAmount":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "minAmount")
			}
			r.MinAmount = v
			return nil
		case "group":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "group")
			}
			r.Group = v
			return nil
		case "groupOp":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "groupOp")
			}
			op, err := coupon.ParseGroupOp(v)
			if err != nil {
				return err
			}
			r.GroupOp = op
			return nil
		case "bogoBuyQty":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "bogoBuyQty")
			}
			r.BogoBuyQty = v
			return nil
		case "bogoGetQty":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "bogoGetQty")
			}
			r.BogoGetQty = v
			return nil
		case "bogoSameItemOnly":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "bogoSameItemOnly")
			}
			r.BogoSameItemOnly = v
			return nil
		case "bogoTargetScope":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "bogoTargetScope")
			}
			ts, err := coupon.ParseBogoTargetScope(v)
			if err != nil {
				return err
			}
			r.BogoTargetScope = ts
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return coupon.Rule{}, err
	}
	if r.ScopeType == "" {
		return coupon.Rule{}, errors.New("scopeType is required")
	}
	return r, nil
}

// decodeDecimal reads a JSON number or numeric string as a decimal.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(strings.Trim(n.String(), `"`))
}

// decodeTime reads an RFC 3339 string, treating null as unset.
func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
