// Package config parses and validates cmd/vprofile's flag surface
// (spec.md §6), following the teacher's flag-parsed Config + Validate()
// shape (cmd/viro's original Config, since deleted along with the rest
// of the interpreter CLI).
package config

import (
	"flag"
	"fmt"

	"github.com/viroprof/vprof/internal/vclock"
	"github.com/viroprof/vprof/internal/wire"
)

// Config is cmd/vprofile's parsed command line.
type Config struct {
	ClockMode    vclock.Mode
	Builtins     bool
	OutputPath   string
	OutputFormat wire.Format
	MultiContext bool
	EventLogPath string
	Args         []string
}

// Parse parses args (excluding argv[0]) into a Config, applying defaults
// matching spec.md §6: CPU clock, no builtins, pstat format, stdout,
// multi-context dispatch on (-s turns it off).
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("vprofile", flag.ContinueOnError)

	clockName := fs.String("c", "cpu", "clock mode: cpu or wall")
	builtins := fs.Bool("b", false, "also profile native/builtin functions")
	output := fs.String("o", "", "output file path (default: stdout)")
	format := fs.String("f", "pstat", "output format: pstat, native, or callgrind")
	singleContext := fs.Bool("s", false, "disable multi-context dispatch")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Builtins:     *builtins,
		OutputPath:   *output,
		MultiContext: !*singleContext,
		Args:         fs.Args(),
	}

	mode, ok := vclock.ParseMode(*clockName)
	if !ok {
		return Config{}, fmt.Errorf("invalid clock mode %q: want wall or cpu", *clockName)
	}
	cfg.ClockMode = mode

	f, err := wire.ParseFormat(*format)
	if err != nil {
		return Config{}, err
	}
	cfg.OutputFormat = f

	return cfg, cfg.Validate()
}

// Validate checks invariants Parse's flag package can't express directly.
func (c Config) Validate() error {
	if len(c.Args) == 0 {
		return fmt.Errorf("missing event log path: usage: vprofile [flags] EVENTLOG")
	}
	return nil
}

// EventLog returns the positional event-log argument (spec.md §6 names
// this "SCRIPT"; this CLI replays a recorded event log in its place,
// since the host runtime itself is out of scope — see DESIGN.md).
func (c Config) EventLog() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}
