// Package domain defines core data structures used throughout the rebalancer.
package domain

import (
	"github.com/shopspring/decimal"
)

const (
	// BaseCurrencySymbol accounting unit every other instrument is valued against.
	BaseCurrencySymbol = "USD"
	// BaseCurrencyInstrumentID broker identifier of the base currency.
	BaseCurrencyInstrumentID = "ubfhvYUsgvMIuJPwr76My"
	// BaseCurrencyLookupKey symbolic identifier of the base currency.
	BaseCurrencyLookupKey = "USD:ALPHAINSIDER"
)

// IsBaseCurrency reports whether the symbol or instrument id denotes the base currency.
func IsBaseCurrency(symbol, instrumentID string) bool {
	return symbol == BaseCurrencySymbol ||
		instrumentID == BaseCurrencyInstrumentID ||
		instrumentID == BaseCurrencyLookupKey
}

// TargetPosition desired holding expressed as a relative weight.
type TargetPosition struct {
	Symbol string
	Amount decimal.Decimal
}

// ResolvedPosition target position bound to a live instrument.
type ResolvedPosition struct {
	TargetPosition
	InstrumentID string
	Price        decimal.Decimal
}

// Value returns the weighted value of the position in base currency units.
func (p ResolvedPosition) Value() decimal.Decimal {
	return p.Amount.Mul(p.Price)
}

// IsBaseCurrency reports whether the position is the base currency itself.
func (p ResolvedPosition) IsBaseCurrency() bool {
	return IsBaseCurrency(p.Symbol, p.InstrumentID)
}

// CurrentPosition holding reported by the broker.
type CurrentPosition struct {
	InstrumentID string
	Symbol       string
	Amount       decimal.Decimal
}

// IsBaseCurrency reports whether the position is the base currency itself.
func (p CurrentPosition) IsBaseCurrency() bool {
	return IsBaseCurrency(p.Symbol, p.InstrumentID)
}

// StrategyValuation current net worth of a strategy.
type StrategyValuation struct {
	TotalValue decimal.Decimal
}

// StrategyKind broker classification of a strategy.
type StrategyKind string

// StrategyKindCryptocurrency strategies trade on the crypto venue.
const StrategyKindCryptocurrency StrategyKind = "cryptocurrency"

// IsCrypto reports whether the strategy trades cryptocurrencies.
func (k StrategyKind) IsCrypto() bool {
	return k == StrategyKindCryptocurrency
}

// Strategy broker metadata of a strategy.
type Strategy struct {
	ID   string
	Kind StrategyKind
	Name string
}

// Instrument tradable asset returned by the instrument lookup.
type Instrument struct {
	InstrumentID string
	BaseSymbol   string
	LastPrice    decimal.Decimal
}

// OpenOrder unexecuted order of a strategy.
type OpenOrder struct {
	OrderID      string
	InstrumentID string
}
