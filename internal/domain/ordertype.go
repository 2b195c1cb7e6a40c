package domain

// OrderType execution type of an order.
type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStopLimit  OrderType = "stop_limit"
	OrderTypeStopMarket OrderType = "stop_market"
	OrderTypeOCO        OrderType = "oco"
)

// String returns the string representation.
func (t OrderType) String() string {
	return string(t)
}

// IsValid checks if the OrderType value is valid.
func (t OrderType) IsValid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopLimit, OrderTypeStopMarket, OrderTypeOCO:
		return true
	}
	return false
}

// RequiresPrice reports whether orders of this type need a limit price.
func (t OrderType) RequiresPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit || t == OrderTypeOCO
}

// RequiresStopPrice reports whether orders of this type need a stop price.
func (t OrderType) RequiresStopPrice() bool {
	return t == OrderTypeStopLimit || t == OrderTypeStopMarket || t == OrderTypeOCO
}
