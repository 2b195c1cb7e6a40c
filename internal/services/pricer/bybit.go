package pricer

import (
	"context"
	"fmt"

	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// BybitPricer fetches spot last prices from the Bybit V5 public API.
type BybitPricer struct {
	client *bybit.Client
}

// NewBybitPricer creates a pricer backed by the given client.
// A nil client is replaced with an unauthenticated one.
func NewBybitPricer(client *bybit.Client) *BybitPricer {
	if client == nil {
		client = bybit.NewClient()
	}
	return &BybitPricer{client: client}
}

// GetPrice fetches the current spot price of the pair. The bybit SDK call is not context aware.
func (p *BybitPricer) GetPrice(_ context.Context, pair domain.Pair) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(pair.Symbol())

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, fmt.Errorf("bybit API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}
