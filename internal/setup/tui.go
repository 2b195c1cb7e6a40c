// Package setup provides the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/rebalancer/config"
)

// GeneratedPath file the wizard writes.
const GeneratedPath = "rebalance.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

func header(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("REBALANCER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and returns the path of the written config.
func RunTUI() (string, error) {
	var (
		endpoint     = config.DefaultEndpoint
		strategyID   string
		apiKey       string
		positionsStr string
		timeoutStr   = config.DefaultTimeout.String()
		scheduleStr  string
		dryRun       bool
		confirm      bool
	)

	// step 1: welcome
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("REBALANCER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Keep your strategy on target.\n"))

	// broker
	fmt.Println(stepStyle.Render("STEP 1: BROKER"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API Endpoint").
				Value(&endpoint).
				Validate(notEmpty("endpoint")),
			huh.NewInput().
				Title("Strategy ID").
				Value(&strategyID).
				Validate(notEmpty("strategy id")),
			huh.NewInput().
				Title("API Key").
				Value(&apiKey).
				EchoMode(huh.EchoModePassword).
				Validate(notEmpty("api key")),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// allocation
	header("STEP 2: ALLOCATION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target Positions").
				Description("Comma separated SYMBOL=weight (e.g. USD=1000,BTC=0.1)").
				Value(&positionsStr).
				Validate(func(s string) error {
					_, err := ParsePositions(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// timing
	header("STEP 3: TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Request Timeout").
				Description("Duration string (e.g. 5s, 10s)").
				Value(&timeoutStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Schedule").
				Description("Cron expression, leave empty for a single pass (e.g. 0 * * * *)").
				Value(&scheduleStr),
			huh.NewConfirm().
				Title("Dry run?").
				Description("Plan orders without cancelling or submitting anything").
				Value(&dryRun),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// confirmation
	header("FINAL CONFIRMATION")

	schedule := scheduleStr
	if schedule == "" {
		schedule = "single pass"
	}
	summary := fmt.Sprintf(
		"Endpoint: %s\nStrategy: %s\nPositions: %s\nTimeout: %s\nSchedule: %s\nDry run: %t\n",
		endpoint, strategyID, positionsStr, timeoutStr, schedule, dryRun,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and rebalance").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	positions, _ := ParsePositions(positionsStr)
	timeout, _ := time.ParseDuration(timeoutStr)

	cfgTmp := config.ConfigTmp{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		StrategyID: strategyID,
		Positions:  positions,
		Timeout:    timeout,
		Schedule:   scheduleStr,
		DryRun:     dryRun,
	}

	if err := Write(GeneratedPath, cfgTmp); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting rebalance...", GeneratedPath)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return GeneratedPath, nil
}

// Write marshals the config to yaml at path. The file holds the api key, so it is private to the user.
func Write(path string, cfg config.ConfigTmp) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// ParsePositions parses a comma separated SYMBOL=weight list.
func ParsePositions(s string) ([]config.PositionTmp, error) {
	var positions []config.PositionTmp
	seen := make(map[string]struct{})

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		symbol, amountStr, ok := strings.Cut(item, "=")
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		amountStr = strings.TrimSpace(amountStr)
		if !ok || symbol == "" {
			return nil, fmt.Errorf("invalid position %q: must be SYMBOL=weight", item)
		}
		if _, dup := seen[symbol]; dup {
			return nil, fmt.Errorf("duplicate position %s", symbol)
		}
		seen[symbol] = struct{}{}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid weight of %s: must be a valid number", symbol)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("invalid weight of %s: must not be negative", symbol)
		}

		positions = append(positions, config.PositionTmp{Symbol: symbol, Amount: amount.String()})
	}

	if len(positions) == 0 {
		return nil, fmt.Errorf("at least one position is required")
	}
	return positions, nil
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}
