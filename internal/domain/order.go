package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const maxInstrumentIDLength = 50

// OrderIntent trade the rebalancer wants to make, before validation.
type OrderIntent struct {
	InstrumentID string
	Action       Action
	Type         OrderType
	// Amount instrument units, sells only.
	Amount decimal.NullDecimal
	// Total quote currency to spend, buys only.
	Total     decimal.NullDecimal
	Price     decimal.NullDecimal
	StopPrice decimal.NullDecimal
}

// NewMarketBuy builds a value-denominated market buy.
func NewMarketBuy(instrumentID string, total decimal.Decimal) OrderIntent {
	return OrderIntent{
		InstrumentID: instrumentID,
		Action:       ActionBuy,
		Type:         OrderTypeMarket,
		Total:        decimal.NewNullDecimal(total),
	}
}

// NewMarketSell builds a quantity-denominated market sell.
func NewMarketSell(instrumentID string, amount decimal.Decimal) OrderIntent {
	return OrderIntent{
		InstrumentID: instrumentID,
		Action:       ActionSell,
		Type:         OrderTypeMarket,
		Amount:       decimal.NewNullDecimal(amount),
	}
}

// ValidatedOrder order payload accepted by the broker. Numbers are exact decimal strings.
type ValidatedOrder struct {
	InstrumentID string    `json:"stock_id"`
	Action       Action    `json:"action"`
	Type         OrderType `json:"type"`
	Amount       string    `json:"amount,omitempty"`
	Total        string    `json:"total,omitempty"`
	Price        string    `json:"price,omitempty"`
	StopPrice    string    `json:"stop_price,omitempty"`
}

// BuildOrder validates the intent and normalizes it into a submittable payload.
// Every rule violation is reported as *ValidationError.
func BuildOrder(intent OrderIntent) (ValidatedOrder, error) {
	if err := intent.validate(); err != nil {
		return ValidatedOrder{}, err
	}

	order := ValidatedOrder{
		InstrumentID: intent.InstrumentID,
		Action:       intent.Action,
		Type:         intent.Type,
	}

	switch intent.Action {
	case ActionSell:
		order.Amount = intent.Amount.Decimal.String()
	case ActionBuy:
		order.Total = intent.Total.Decimal.String()
	}
	if intent.Price.Valid {
		order.Price = intent.Price.Decimal.String()
	}
	if intent.StopPrice.Valid {
		order.StopPrice = intent.StopPrice.Decimal.String()
	}

	return order, nil
}

func (o OrderIntent) validate() error {
	if err := o.validateInstrument(); err != nil {
		return err
	}

	if !o.Action.IsValid() {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("must be one of buy, sell, got %q", o.Action)}
	}
	if !o.Type.IsValid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of market, limit, stop_limit, stop_market, oco, got %q", o.Type)}
	}

	if err := o.validatePrices(); err != nil {
		return err
	}

	switch o.Action {
	case ActionSell:
		if o.Total.Valid {
			return &ValidationError{Field: "total", Reason: "is not allowed for sell orders"}
		}
		if !o.Amount.Valid {
			return &ValidationError{Field: "amount", Reason: "is required for sell orders"}
		}
		if !o.Amount.Decimal.IsPositive() {
			return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
		}
	case ActionBuy:
		if o.Amount.Valid {
			return &ValidationError{Field: "amount", Reason: "is not allowed for buy orders"}
		}
		if !o.Total.Valid {
			return &ValidationError{Field: "total", Reason: "is required for buy orders"}
		}
		if !o.Total.Decimal.IsPositive() {
			return &ValidationError{Field: "total", Reason: "must be greater than zero"}
		}
	}

	return nil
}

func (o OrderIntent) validateInstrument() error {
	switch {
	case o.InstrumentID == "":
		return &ValidationError{Field: "stock_id", Reason: "is required"}
	case len(o.InstrumentID) > maxInstrumentIDLength:
		return &ValidationError{Field: "stock_id", Reason: "is too long"}
	case o.InstrumentID == BaseCurrencyInstrumentID, o.InstrumentID == BaseCurrencyLookupKey:
		return &ValidationError{Field: "stock_id", Reason: "orders on the base currency are not allowed"}
	}
	return nil
}

func (o OrderIntent) validatePrices() error {
	if o.Type.RequiresPrice() && !o.Price.Valid {
		return &ValidationError{Field: "price", Reason: "is required for " + o.Type.String() + " orders"}
	}
	if o.Type.RequiresStopPrice() && !o.StopPrice.Valid {
		return &ValidationError{Field: "stop_price", Reason: "is required for " + o.Type.String() + " orders"}
	}
	if o.Price.Valid && !o.Price.Decimal.IsPositive() {
		return &ValidationError{Field: "price", Reason: "must be greater than zero"}
	}
	if o.StopPrice.Valid && !o.StopPrice.Decimal.IsPositive() {
		return &ValidationError{Field: "stop_price", Reason: "must be greater than zero"}
	}
	return nil
}
