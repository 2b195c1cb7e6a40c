// Package app drives rebalance passes and renders their outcome for the operator.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/rebalancer"
)

// Rebalancer runs a single rebalance pass.
type Rebalancer interface {
	Rebalance(ctx context.Context) (*rebalancer.Report, error)
}

type styles struct {
	buy     lipgloss.Style
	sell    lipgloss.Style
	failed  lipgloss.Style
	success lipgloss.Style
	subtle  lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		buy:     r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}),
		sell:    r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}),
		failed:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		success: r.NewStyle().Bold(true),
		subtle:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}),
	}
}

// Runner times one pass and writes a line per action to out.
type Runner struct {
	engine Rebalancer
	out    io.Writer
	styles styles
	l      *zap.Logger
	now    func() time.Time
}

// NewRunner creates new Runner instance.
func NewRunner(l *zap.Logger, engine Rebalancer, out io.Writer) *Runner {
	if l == nil {
		l = zap.NewNop()
	}
	return &Runner{
		engine: engine,
		out:    out,
		styles: newStyles(out),
		l:      l,
		now:    time.Now,
	}
}

// RunOnce runs a pass and prints its outcome. Only fatal errors are returned,
// per-instrument and cancellation failures are printed and counted.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := r.now()

	report, err := r.engine.Rebalance(ctx)
	if err != nil {
		r.l.Error("rebalance failed", zap.Error(err))
		r.println(r.styles.failed, fmt.Sprintf("error: %v", err))
		r.printElapsed(start)
		return err
	}

	if report.DryRun {
		r.println(r.styles.subtle, "dry run, no orders were cancelled or submitted")
	}
	for _, a := range report.Actions {
		r.printAction(a, report.DryRun)
	}
	for _, f := range report.CancelFailures {
		if f.OrderID == "" {
			r.println(r.styles.failed, fmt.Sprintf("failed to list open orders: %v", f.Err))
			continue
		}
		r.println(r.styles.failed, fmt.Sprintf("failed to cancel order %s: %v", f.OrderID, f.Err))
	}

	failures := len(report.Failed()) + len(report.CancelFailures)
	if failures > 0 {
		r.println(r.styles.failed, fmt.Sprintf("rebalance completed with %d failures", failures))
	} else {
		r.println(r.styles.success, "rebalance completed")
	}
	r.printElapsed(start)

	return nil
}

func (r *Runner) printAction(a rebalancer.InstrumentAction, dryRun bool) {
	if a.Failed() {
		r.println(r.styles.failed, fmt.Sprintf("failed %s: %v", a.Symbol, a.Err))
		return
	}

	var line string
	style := r.styles.sell
	switch {
	case a.Side == domain.ActionBuy:
		style = r.styles.buy
		line = fmt.Sprintf("bought %s %s for %s %s", a.Amount, a.Symbol, a.Total, domain.BaseCurrencySymbol)
	case a.Liquidation:
		line = fmt.Sprintf("sold all %s %s", a.Amount, a.Symbol)
	default:
		line = fmt.Sprintf("sold %s %s at %s", a.Amount, a.Symbol, a.Price)
	}
	if dryRun {
		line = "[dry run] " + line
	}
	r.println(style, line)
}

func (r *Runner) printElapsed(start time.Time) {
	r.println(r.styles.subtle, fmt.Sprintf("time taken: %s", r.now().Sub(start)))
}

func (r *Runner) println(style lipgloss.Style, line string) {
	fmt.Fprintln(r.out, style.Render(line))
}
