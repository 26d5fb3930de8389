// Package main provides a command-line dice roller using the bot's dice engine.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cory-johannsen/dicebot/internal/config"
	"github.com/cory-johannsen/dicebot/internal/dice"
	"github.com/cory-johannsen/dicebot/internal/observability"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run rolls the expression in args and returns the process exit code:
// 0 on success, 1 for an expression that does not parse, 2 for usage errors.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("roll", flag.ContinueOnError)
	fs.SetOutput(stderr)
	modifierFlag := fs.String("modifier", "", "roll modifier: advantage or disadvantage")
	seed := fs.Uint64("seed", 0, "seed for a reproducible roll (0 = cryptographic randomness)")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: roll [-modifier m] [-seed n] <expr>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger, err := observability.NewLogger(config.LoggingConfig{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(stderr, "creating logger: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	modifier, err := dice.ParseModifier(*modifierFlag)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	src := dice.NewCryptoSource()
	if *seed != 0 {
		src = dice.NewSeededSource(*seed)
	}
	roller := dice.NewLoggedRoller(src, logger)

	out, err := roller.Roll(strings.Join(fs.Args(), " "), modifier)
	if err != nil {
		var perr *dice.ParseError
		if errors.As(err, &perr) {
			fmt.Fprintln(stderr, perr.Message)
			return 1
		}
		fmt.Fprintf(stderr, "rolling: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, out.Plan.Describe())
	fmt.Fprintln(stdout, out.String())
	for _, d := range out.Forwarded() {
		if d.Critical() {
			fmt.Fprintf(stdout, "critical: d%d rolled %d\n", d.Sides, d.Value)
		}
	}
	return 0
}
