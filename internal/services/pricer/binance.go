package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// BinancePricer fetches last prices from the Binance public API
// without requiring authentication
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a pricer backed by the given client.
// A nil client is replaced with an unauthenticated one.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	if client == nil {
		client = binance.NewClient("", "")
	}
	return &BinancePricer{client: client}
}

// GetPrice fetches the current market price of the pair.
func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(prices[0].Price)
}
