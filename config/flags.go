package config

import (
	"flag"
	"io"
)

const DefaultPath = "rebalance.yaml"

// Flags command line options.
type Flags struct {
	ConfigPath string
	Setup      bool
	DryRun     bool
	Once       bool
}

// ParseFlags parses command line arguments without the program name.
func ParseFlags(args []string, output io.Writer) (Flags, error) {
	var f Flags

	fs := flag.NewFlagSet("rebalancer", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.ConfigPath, "config", DefaultPath, "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the configuration wizard before rebalancing")
	fs.BoolVar(&f.DryRun, "dry-run", false, "plan orders without cancelling or submitting anything")
	fs.BoolVar(&f.Once, "once", false, "run a single pass even if a schedule is configured")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Apply overrides config values set on the command line.
func (f Flags) Apply(cfg *Config) {
	if f.DryRun {
		cfg.DryRun = true
	}
	if f.Once {
		cfg.Schedule = ""
	}
}
