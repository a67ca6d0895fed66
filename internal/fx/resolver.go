package fx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/samudra-erp/samudra-erp/internal/money"
)

// Resolver answers "what is currency X worth in the base currency on date
// D". Lookups go through Redis with a short TTL; cache misses are
// deduplicated with singleflight so a burst of invoice recalculations hits
// the database once per (currency, date).
type Resolver struct {
	repo   Repository
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewResolver builds a Resolver. client may be nil; resolution then goes
// straight to the repository.
func NewResolver(repo Repository, client *redis.Client, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resolver{repo: repo, client: client, ttl: ttl}
}

// Resolve returns the rate converting one unit of currency into the base
// currency as of the given date, scaled to six decimal places. The base
// currency is pinned at exactly 1.000000 and never touches storage.
func (r *Resolver) Resolve(ctx context.Context, currency string, asOf time.Time) (decimal.Decimal, error) {
	if money.IsBase(currency) {
		return money.RoundRate(money.One), nil
	}

	key := "fx:" + currency + ":" + asOf.Format("2006-01-02")
	if r.client != nil {
		if raw, err := r.client.Get(ctx, key).Result(); err == nil {
			if rate, perr := decimal.NewFromString(raw); perr == nil {
				return rate, nil
			}
		}
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		rate, err := r.repo.LatestBefore(ctx, currency, asOf)
		if err != nil {
			return decimal.Decimal{}, err
		}
		scaled := money.RoundRate(rate.Rate)
		if r.client != nil {
			_ = r.client.Set(ctx, key, scaled.String(), r.ttl).Err()
		}
		return scaled, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}

// Convert turns an amount in currency into the base currency as of the
// given date, rounded to the currency scale.
func (r *Resolver) Convert(ctx context.Context, amount decimal.Decimal, currency string, asOf time.Time) (decimal.Decimal, error) {
	if money.IsBase(currency) {
		return money.RoundCurrency(amount), nil
	}
	rate, err := r.Resolve(ctx, currency, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return money.RoundCurrency(amount.Mul(rate)), nil
}
