// Package resolver binds symbolic target positions to live broker instruments.
package resolver

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const (
	// DefaultCryptoVenue venue used by cryptocurrency strategies.
	DefaultCryptoVenue = "COINBASE"
	// DefaultVenue venue used by every other strategy.
	DefaultVenue = ""
)

// InstrumentLookup batch instrument lookup of the broker.
type InstrumentLookup interface {
	GetInstruments(ctx context.Context, keys []string) ([]domain.Instrument, error)
}

// Venues maps a strategy kind to the venue its instruments are resolved against.
type Venues struct {
	Crypto  string
	Default string
}

// DefaultVenues venues used by the AlphaInsider API.
func DefaultVenues() Venues {
	return Venues{Crypto: DefaultCryptoVenue, Default: DefaultVenue}
}

// For returns the venue for the strategy kind.
func (v Venues) For(kind domain.StrategyKind) string {
	if kind.IsCrypto() {
		return v.Crypto
	}
	return v.Default
}

// Resolver resolves target positions in a single lookup round trip.
type Resolver struct {
	lookup InstrumentLookup
	venues Venues
	l      *zap.Logger
}

// New creates a Resolver.
func New(l *zap.Logger, lookup InstrumentLookup, venues Venues) *Resolver {
	if l == nil {
		l = zap.NewNop()
	}
	return &Resolver{lookup: lookup, venues: venues, l: l}
}

// LookupKey builds the instrument lookup key of a symbol.
func LookupKey(symbol, venue string) string {
	return fmt.Sprintf("%s:%s", symbol, venue)
}

// Resolve returns a new slice of resolved positions in target order.
// Any target without an instrument or a positive price fails the whole
// resolution with *domain.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, targets []domain.TargetPosition, kind domain.StrategyKind) ([]domain.ResolvedPosition, error) {
	venue := r.venues.For(kind)

	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		if t.Symbol == domain.BaseCurrencySymbol {
			continue
		}
		keys = append(keys, LookupKey(t.Symbol, venue))
	}

	var instruments []domain.Instrument
	if len(keys) > 0 {
		var err error
		instruments, err = r.lookup.GetInstruments(ctx, keys)
		if err != nil {
			return nil, err
		}
	}

	bySymbol := make(map[string]domain.Instrument, len(instruments))
	for _, in := range instruments {
		if _, seen := bySymbol[in.BaseSymbol]; !seen {
			bySymbol[in.BaseSymbol] = in
		}
	}

	resolved := make([]domain.ResolvedPosition, 0, len(targets))
	var missing, unpriced []string
	for _, t := range targets {
		if t.Symbol == domain.BaseCurrencySymbol {
			resolved = append(resolved, domain.ResolvedPosition{
				TargetPosition: t,
				InstrumentID:   domain.BaseCurrencyInstrumentID,
				Price:          decimal.NewFromInt(1),
			})
			continue
		}

		in, ok := bySymbol[t.Symbol]
		switch {
		case !ok || in.InstrumentID == "":
			missing = append(missing, t.Symbol)
			continue
		case !in.LastPrice.IsPositive():
			unpriced = append(unpriced, t.Symbol)
			continue
		}

		resolved = append(resolved, domain.ResolvedPosition{
			TargetPosition: t,
			InstrumentID:   in.InstrumentID,
			Price:          in.LastPrice,
		})
	}

	if len(missing) > 0 {
		return nil, &domain.ResolutionError{Symbols: missing, Reason: "instrument not found"}
	}
	if len(unpriced) > 0 {
		return nil, &domain.ResolutionError{Symbols: unpriced, Reason: "instrument has no positive price"}
	}

	r.l.Debug("positions resolved",
		zap.String("venue", venue),
		zap.Int("lookups", len(keys)),
		zap.Int("positions", len(resolved)))

	return resolved, nil
}
