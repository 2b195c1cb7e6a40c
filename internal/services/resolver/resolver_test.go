package resolver

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

type mockLookup struct {
	instruments []domain.Instrument
	err         error
	calls       [][]string
}

func (m *mockLookup) GetInstruments(_ context.Context, keys []string) ([]domain.Instrument, error) {
	m.calls = append(m.calls, keys)
	if m.err != nil {
		return nil, m.err
	}
	return m.instruments, nil
}

func target(symbol, amount string) domain.TargetPosition {
	return domain.TargetPosition{Symbol: symbol, Amount: decimal.RequireFromString(amount)}
}

func instrument(id, symbol, price string) domain.Instrument {
	return domain.Instrument{InstrumentID: id, BaseSymbol: symbol, LastPrice: decimal.RequireFromString(price)}
}

func TestResolver_Resolve(t *testing.T) {
	lookup := &mockLookup{instruments: []domain.Instrument{
		instrument("eth-id", "ETH", "2633.09"),
		instrument("btc-id", "BTC", "50000"),
	}}
	r := New(zap.NewNop(), lookup, DefaultVenues())

	targets := []domain.TargetPosition{target("USD", "1000"), target("BTC", "0.1"), target("ETH", "2")}
	resolved, err := r.Resolve(context.Background(), targets, domain.StrategyKindCryptocurrency)
	require.NoError(t, err)

	require.Len(t, lookup.calls, 1, "instruments must be fetched in a single round trip")
	assert.Equal(t, []string{"BTC:COINBASE", "ETH:COINBASE"}, lookup.calls[0])

	require.Len(t, resolved, 3)
	assert.Equal(t, domain.BaseCurrencyInstrumentID, resolved[0].InstrumentID)
	assert.True(t, resolved[0].Price.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "btc-id", resolved[1].InstrumentID)
	assert.True(t, resolved[1].Price.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "eth-id", resolved[2].InstrumentID)
	assert.Equal(t, "2633.09", resolved[2].Price.String())

	// input is left untouched
	assert.Equal(t, "BTC", targets[1].Symbol)
}

func TestResolver_DefaultVenue(t *testing.T) {
	lookup := &mockLookup{instruments: []domain.Instrument{instrument("tsla-id", "TSLA", "217.96")}}
	r := New(nil, lookup, DefaultVenues())

	_, err := r.Resolve(context.Background(), []domain.TargetPosition{target("TSLA", "3")}, "stock")
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA:"}, lookup.calls[0])
}

func TestResolver_OnlyBaseCurrencySkipsLookup(t *testing.T) {
	lookup := &mockLookup{}
	r := New(nil, lookup, DefaultVenues())

	resolved, err := r.Resolve(context.Background(), []domain.TargetPosition{target("USD", "1")}, domain.StrategyKindCryptocurrency)
	require.NoError(t, err)
	assert.Len(t, resolved, 1)
	assert.Empty(t, lookup.calls)
}

func TestResolver_Failures(t *testing.T) {
	tests := []struct {
		name        string
		instruments []domain.Instrument
		symbols     []string
	}{
		{
			name:        "missing instrument",
			instruments: []domain.Instrument{instrument("btc-id", "BTC", "50000")},
			symbols:     []string{"ETH"},
		},
		{
			name:        "zero price",
			instruments: []domain.Instrument{instrument("btc-id", "BTC", "50000"), instrument("eth-id", "ETH", "0")},
			symbols:     []string{"ETH"},
		},
		{
			name:        "empty instrument id",
			instruments: []domain.Instrument{instrument("", "BTC", "50000"), instrument("eth-id", "ETH", "2000")},
			symbols:     []string{"BTC"},
		},
		{
			name:        "nothing found",
			instruments: nil,
			symbols:     []string{"BTC", "ETH"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil, &mockLookup{instruments: tt.instruments}, DefaultVenues())

			resolved, err := r.Resolve(context.Background(),
				[]domain.TargetPosition{target("USD", "10"), target("BTC", "1"), target("ETH", "1")},
				domain.StrategyKindCryptocurrency)
			assert.Nil(t, resolved)

			var resErr *domain.ResolutionError
			require.True(t, errors.As(err, &resErr), "expected ResolutionError, got %v", err)
			assert.Equal(t, tt.symbols, resErr.Symbols)
		})
	}
}

func TestResolver_LookupFailure(t *testing.T) {
	callErr := &domain.BrokerCallError{Op: "getStocks", Err: errors.New("timeout")}
	r := New(nil, &mockLookup{err: callErr}, DefaultVenues())

	_, err := r.Resolve(context.Background(), []domain.TargetPosition{target("BTC", "1")}, domain.StrategyKindCryptocurrency)

	var got *domain.BrokerCallError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "getStocks", got.Op)
}

func TestResolver_Idempotent(t *testing.T) {
	lookup := &mockLookup{instruments: []domain.Instrument{
		instrument("btc-id", "BTC", "50000"),
		instrument("eth-id", "ETH", "2000"),
	}}
	r := New(nil, lookup, DefaultVenues())
	targets := []domain.TargetPosition{target("USD", "1000"), target("BTC", "0.1"), target("ETH", "1")}

	first, err := r.Resolve(context.Background(), targets, domain.StrategyKindCryptocurrency)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), targets, domain.StrategyKindCryptocurrency)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
