// Package rebalancer moves a strategy's holdings toward a target allocation in a single pass.
package rebalancer

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/resolver"
)

const (
	defaultCancelConcurrency = 4
	// targetAmountPrecision decimal places kept when normalizing target weights.
	targetAmountPrecision = 18
)

// Broker strategy API the pass reads from and writes to.
type Broker interface {
	resolver.InstrumentLookup
	GetStrategy(ctx context.Context, strategyID string) (domain.Strategy, error)
	GetStrategyValue(ctx context.Context, strategyID string) (domain.StrategyValuation, error)
	GetPositions(ctx context.Context, strategyID string) ([]domain.CurrentPosition, error)
	GetOpenOrders(ctx context.Context, strategyID string) ([]domain.OpenOrder, error)
	DeleteOrder(ctx context.Context, strategyID, orderID string) error
	SubmitOrder(ctx context.Context, strategyID string, order domain.ValidatedOrder) error
}

// PriceGuard validates resolved prices before any order is touched.
type PriceGuard interface {
	Check(ctx context.Context, positions []domain.ResolvedPosition) error
}

// Config parameters of a rebalance pass.
type Config struct {
	StrategyID        string
	Targets           []domain.TargetPosition
	Venues            resolver.Venues
	CancelConcurrency int
	DryRun            bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithPriceGuard checks resolved prices of cryptocurrency strategies against a reference venue.
func WithPriceGuard(g PriceGuard) Option {
	return func(e *Engine) {
		e.guard = g
	}
}

// Engine runs rebalance passes. It keeps no state between passes.
type Engine struct {
	broker   Broker
	resolver *resolver.Resolver
	guard    PriceGuard
	cfg      Config
	l        *zap.Logger
}

// NewEngine creates new Engine instance.
func NewEngine(l *zap.Logger, broker Broker, cfg Config, opts ...Option) (*Engine, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if broker == nil {
		return nil, errors.New("broker is required")
	}
	if cfg.StrategyID == "" {
		return nil, errors.New("strategy id is required")
	}
	if len(cfg.Targets) == 0 {
		return nil, errors.New("at least one target position is required")
	}
	seen := make(map[string]struct{}, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if _, dup := seen[t.Symbol]; dup {
			return nil, errors.Errorf("duplicate target position %s", t.Symbol)
		}
		seen[t.Symbol] = struct{}{}
	}
	if cfg.CancelConcurrency < 1 {
		cfg.CancelConcurrency = defaultCancelConcurrency
	}

	// the engine owns its copy of the allocation
	cfg.Targets = append([]domain.TargetPosition(nil), cfg.Targets...)

	e := &Engine{
		broker:   broker,
		resolver: resolver.New(l, broker, cfg.Venues),
		cfg:      cfg,
		l:        l,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rebalance runs one pass. Errors returned before open orders are cancelled
// leave the strategy untouched; per-instrument failures after that point are
// collected in the report instead.
func (e *Engine) Rebalance(ctx context.Context) (*Report, error) {
	report := &Report{
		PassID: uuid.New().String(),
		DryRun: e.cfg.DryRun,
	}
	l := e.l.With(zap.String("pass_id", report.PassID), zap.String("strategy_id", e.cfg.StrategyID))

	strategy, valuation, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	report.Strategy = strategy
	report.Valuation = valuation

	resolved, err := e.resolver.Resolve(ctx, e.cfg.Targets, strategy.Kind)
	if err != nil {
		return nil, err
	}

	if e.guard != nil && strategy.Kind.IsCrypto() {
		if err := e.guard.Check(ctx, resolved); err != nil {
			return nil, err
		}
	}

	totalWeight, err := TotalWeight(resolved)
	if err != nil {
		return nil, err
	}
	report.TotalWeight = totalWeight

	l.Info("allocation resolved",
		zap.String("kind", string(strategy.Kind)),
		zap.String("strategy_value", valuation.TotalValue.String()),
		zap.String("total_weight", totalWeight.String()),
		zap.Int("positions", len(resolved)))

	if e.cfg.DryRun {
		l.Info("dry run, open orders are kept")
	} else {
		e.cancelOpenOrders(ctx, l, report)
	}

	current, err := e.broker.GetPositions(ctx, e.cfg.StrategyID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]domain.CurrentPosition, len(current))
	for _, p := range current {
		held[p.InstrumentID] = p
	}

	targeted := make(map[string]struct{}, len(resolved))
	for _, p := range resolved {
		targeted[p.InstrumentID] = struct{}{}
		if p.IsBaseCurrency() {
			continue
		}

		currentAmount := decimal.Zero
		if h, ok := held[p.InstrumentID]; ok {
			currentAmount = h.Amount
		}
		target := TargetAmount(p.Amount, totalWeight, valuation.TotalValue)
		delta := target.Sub(currentAmount)

		l.Debug("position delta",
			zap.String("symbol", p.Symbol),
			zap.String("target", target.String()),
			zap.String("current", currentAmount.String()),
			zap.String("delta", delta.String()))

		switch delta.Sign() {
		case 1:
			total := delta.Mul(p.Price)
			report.Actions = append(report.Actions, e.execute(ctx, l, domain.NewMarketBuy(p.InstrumentID, total), InstrumentAction{
				Symbol:       p.Symbol,
				InstrumentID: p.InstrumentID,
				Side:         domain.ActionBuy,
				Amount:       delta,
				Total:        total,
				Price:        p.Price,
			}))
		case -1:
			amount := delta.Neg()
			report.Actions = append(report.Actions, e.execute(ctx, l, domain.NewMarketSell(p.InstrumentID, amount), InstrumentAction{
				Symbol:       p.Symbol,
				InstrumentID: p.InstrumentID,
				Side:         domain.ActionSell,
				Amount:       amount,
				Price:        p.Price,
			}))
		}
	}

	for _, p := range current {
		if p.IsBaseCurrency() {
			continue
		}
		if _, ok := targeted[p.InstrumentID]; ok {
			continue
		}
		// duplicated snapshot rows must not sell twice
		targeted[p.InstrumentID] = struct{}{}

		if !p.Amount.IsPositive() {
			l.Warn("skip liquidation of non-positive holding",
				zap.String("symbol", p.Symbol),
				zap.String("instrument_id", p.InstrumentID),
				zap.String("amount", p.Amount.String()))
			continue
		}

		report.Actions = append(report.Actions, e.execute(ctx, l, domain.NewMarketSell(p.InstrumentID, p.Amount), InstrumentAction{
			Symbol:       p.Symbol,
			InstrumentID: p.InstrumentID,
			Side:         domain.ActionSell,
			Liquidation:  true,
			Amount:       p.Amount,
		}))
	}

	l.Info("rebalance completed",
		zap.Int("actions", len(report.Actions)),
		zap.Int("failed", len(report.Failed())),
		zap.Int("cancelled", report.Cancelled),
		zap.Bool("dry_run", report.DryRun))

	return report, nil
}

// snapshot fetches strategy metadata and valuation concurrently.
func (e *Engine) snapshot(ctx context.Context) (domain.Strategy, domain.StrategyValuation, error) {
	var (
		strategy  domain.Strategy
		valuation domain.StrategyValuation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		strategy, err = e.broker.GetStrategy(gctx, e.cfg.StrategyID)
		return err
	})
	g.Go(func() error {
		var err error
		valuation, err = e.broker.GetStrategyValue(gctx, e.cfg.StrategyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Strategy{}, domain.StrategyValuation{}, err
	}

	if strategy.ID == "" {
		strategy.ID = e.cfg.StrategyID
	}
	return strategy, valuation, nil
}

// cancelOpenOrders deletes every open order. Failures are recorded, never returned.
func (e *Engine) cancelOpenOrders(ctx context.Context, l *zap.Logger, report *Report) {
	orders, err := e.broker.GetOpenOrders(ctx, e.cfg.StrategyID)
	if err != nil {
		l.Error("failed to list open orders", zap.Error(err))
		report.CancelFailures = append(report.CancelFailures, CancelFailure{Err: err})
		return
	}

	results := make([]error, len(orders))
	var g errgroup.Group
	g.SetLimit(e.cfg.CancelConcurrency)
	for i, o := range orders {
		i, o := i, o
		g.Go(func() error {
			results[i] = e.broker.DeleteOrder(ctx, e.cfg.StrategyID, o.OrderID)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range orders {
		if err := results[i]; err != nil {
			l.Error("failed to cancel order", zap.String("order_id", o.OrderID), zap.Error(err))
			report.CancelFailures = append(report.CancelFailures, CancelFailure{OrderID: o.OrderID, Err: err})
			continue
		}
		report.Cancelled++
	}

	l.Info("open orders cancelled",
		zap.Int("cancelled", report.Cancelled),
		zap.Int("failed", len(orders)-report.Cancelled))
}

// execute validates and submits one order. The returned action carries any failure.
func (e *Engine) execute(ctx context.Context, l *zap.Logger, intent domain.OrderIntent, action InstrumentAction) InstrumentAction {
	fields := []zap.Field{
		zap.String("symbol", action.Symbol),
		zap.String("instrument_id", action.InstrumentID),
		zap.String("action", action.Side.String()),
		zap.String("amount", action.Amount.String()),
	}
	if action.Side == domain.ActionBuy {
		fields = append(fields, zap.String("total", action.Total.String()))
	}

	order, err := domain.BuildOrder(intent)
	if err != nil {
		l.Error("order rejected", append(fields, zap.Error(err))...)
		action.Err = err
		return action
	}

	if e.cfg.DryRun {
		l.Info("order planned", fields...)
		return action
	}

	if err := e.broker.SubmitOrder(ctx, e.cfg.StrategyID, order); err != nil {
		l.Error("failed to submit order", append(fields, zap.Error(err))...)
		action.Err = err
		return action
	}

	action.Submitted = true
	l.Info("order submitted", fields...)
	return action
}

// TotalWeight returns Σ amount*price of the resolved allocation.
// A zero total is reported as *domain.DivisionError.
func TotalWeight(positions []domain.ResolvedPosition) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Value())
	}
	if total.IsZero() {
		return decimal.Zero, &domain.DivisionError{What: "total target weight is zero"}
	}
	return total, nil
}

// TargetAmount returns (weight / totalWeight) * totalValue. The product is
// taken first so that exact allocations stay exact.
func TargetAmount(weight, totalWeight, totalValue decimal.Decimal) decimal.Decimal {
	return weight.Mul(totalValue).DivRound(totalWeight, targetAmountPrecision)
}
