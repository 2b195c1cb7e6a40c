package rebalancer

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

// InstrumentAction order the pass decided on for one instrument.
type InstrumentAction struct {
	Symbol       string
	InstrumentID string
	Side         domain.Action
	// Liquidation the instrument was dropped from the target allocation.
	Liquidation bool
	// Amount instrument units bought or sold.
	Amount decimal.Decimal
	// Total base currency spent, buys only.
	Total decimal.Decimal
	// Price instrument price used by the pass, zero for liquidations.
	Price     decimal.Decimal
	Submitted bool
	Err       error
}

// Failed reports whether the order could not be built or submitted.
func (a InstrumentAction) Failed() bool {
	return a.Err != nil
}

// CancelFailure open order that could not be cancelled.
type CancelFailure struct {
	// OrderID is empty when listing the open orders failed.
	OrderID string
	Err     error
}

// Report outcome of one rebalance pass.
type Report struct {
	PassID         string
	Strategy       domain.Strategy
	Valuation      domain.StrategyValuation
	TotalWeight    decimal.Decimal
	DryRun         bool
	Cancelled      int
	CancelFailures []CancelFailure
	Actions        []InstrumentAction
}

// Failed returns the per-instrument actions that failed.
func (r *Report) Failed() []InstrumentAction {
	var failed []InstrumentAction
	for _, a := range r.Actions {
		if a.Failed() {
			failed = append(failed, a)
		}
	}
	return failed
}

// Partial reports whether any per-instrument or cancellation step failed.
func (r *Report) Partial() bool {
	return len(r.CancelFailures) > 0 || len(r.Failed()) > 0
}
