// Package pricer provides reference market prices used to sanity check broker quotes.
package pricer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const (
	SourceBinance = "binance"
	SourceBybit   = "bybit"
)

var hundred = decimal.NewFromInt(100)

// Pricer provides current price of asset in trade pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// New returns a public pricer for the named source.
func New(source string) (Pricer, error) {
	switch source {
	case SourceBinance:
		return NewBinancePricer(nil), nil
	case SourceBybit:
		return NewBybitPricer(nil), nil
	default:
		return nil, fmt.Errorf("unsupported reference price source: %s", source)
	}
}

// Guard rejects broker prices that drift too far from a reference venue.
type Guard struct {
	pricer       Pricer
	quote        string
	maxDeviation decimal.Decimal
	l            *zap.Logger
}

// NewGuard creates a guard comparing against pairs quoted in quote.
func NewGuard(l *zap.Logger, pricer Pricer, quote string, maxDeviationPercent decimal.Decimal) *Guard {
	if l == nil {
		l = zap.NewNop()
	}
	return &Guard{pricer: pricer, quote: quote, maxDeviation: maxDeviationPercent, l: l}
}

// Check compares every non base currency position with the reference price.
// All deviating symbols are reported together as *domain.ResolutionError.
func (g *Guard) Check(ctx context.Context, positions []domain.ResolvedPosition) error {
	var deviating []string
	for _, p := range positions {
		if p.IsBaseCurrency() {
			continue
		}

		pair := domain.Pair{From: p.Symbol, To: g.quote}
		ref, err := g.pricer.GetPrice(ctx, pair)
		if err != nil {
			return errors.Wrapf(err, "failed to get reference price for %s", pair.String())
		}

		deviation, err := deviationPercent(p.Price, ref)
		if err != nil {
			return errors.Wrapf(err, "reference price for %s", pair.String())
		}

		g.l.Debug("reference price",
			zap.String("symbol", p.Symbol),
			zap.String("broker", p.Price.String()),
			zap.String("reference", ref.String()),
			zap.String("deviation_percent", deviation.StringFixed(4)))

		if deviation.GreaterThan(g.maxDeviation) {
			deviating = append(deviating, p.Symbol)
		}
	}

	if len(deviating) > 0 {
		return &domain.ResolutionError{
			Symbols: deviating,
			Reason:  fmt.Sprintf("broker price deviates more than %s%% from reference", g.maxDeviation.String()),
		}
	}
	return nil
}

// deviationPercent returns |price - ref| / ref * 100.
func deviationPercent(price, ref decimal.Decimal) (decimal.Decimal, error) {
	if !ref.IsPositive() {
		return decimal.Zero, errors.New("reference price must be greater than zero")
	}
	return price.Sub(ref).Abs().Mul(hundred).Div(ref), nil
}
