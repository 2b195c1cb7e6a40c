package domain

// Action side of an order.
type Action string

const (
	// ActionBuy spends quote currency on an instrument.
	ActionBuy Action = "buy"
	// ActionSell liquidates instrument units.
	ActionSell Action = "sell"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the Action value is valid.
func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell:
		return true
	}
	return false
}
