// Package cli implements this engine's two operator-facing subcommands,
// collect-signals and phase1-arbitrage, dispatched from cmd/arbit/main.go.
// It is grounded on the spf13/pflag + spf13/viper ecosystem already
// present via internal/config, generalized from the teacher's
// single-binary (no subcommands) entry point to a two-subcommand CLI, the
// shape both other example repos in the retrieval pack that ship a CLI
// (backtest-runner binaries) use for flag parsing.
package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses the spec's duration grammar: <n>{ms|s|m|h|d}, with
// a zero magnitude or a missing unit rejected. Unlike time.ParseDuration it
// rejects compound durations like "1h30m" and accepts a day unit "d",
// which time.ParseDuration lacks: the CLI's duration grammar is a single
// magnitude-and-unit pair.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("cli: duration is required")
	}

	unit := ""
	numEnd := len(s)
	for _, suffix := range []string{"ms", "s", "m", "h", "d"} {
		if strings.HasSuffix(s, suffix) {
			unit = suffix
			numEnd = len(s) - len(suffix)
			break
		}
	}
	if unit == "" {
		return 0, fmt.Errorf("cli: duration %q missing unit (ms|s|m|h|d)", s)
	}

	n, err := strconv.ParseInt(s[:numEnd], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("cli: duration %q has an invalid or zero magnitude", s)
	}

	switch unit {
	case "ms":
		return time.Duration(n) * time.Millisecond, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("cli: duration %q has an unrecognized unit", s)
	}
}

var validSources = map[string]bool{
	"orderbook":    true,
	"funding":      true,
	"liquidations": true,
	"tradeticks":   true,
	"polymarket":   true,
	"news":         true,
}

// ParseSources parses the spec's sources grammar: CSV over the six named
// sources; "all" or an empty string means every source; entries are
// deduplicated; an unknown source is rejected. The result is sorted for
// deterministic ordering regardless of input order.
func ParseSources(csv string) ([]string, error) {
	trimmed := strings.TrimSpace(csv)
	if trimmed == "" || trimmed == "all" {
		out := make([]string, 0, len(validSources))
		for s := range validSources {
			out = append(out, s)
		}
		sort.Strings(out)
		return out, nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(trimmed, ",") {
		source := strings.TrimSpace(part)
		if source == "" {
			continue
		}
		if !validSources[source] {
			return nil, fmt.Errorf("cli: unknown source %q", source)
		}
		if seen[source] {
			continue
		}
		seen[source] = true
		out = append(out, source)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("cli: sources list is empty after parsing")
	}
	sort.Strings(out)
	return out, nil
}

// ExitCode is the process exit status taxonomy from spec §6.8.
type ExitCode int

const (
	ExitSuccess       ExitCode = 0
	ExitConfigError   ExitCode = 1
	ExitRuntimeError  ExitCode = 2
	ExitInterrupted   ExitCode = 130
)
