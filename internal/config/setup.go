package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fakeyudi/dwell/internal/timeline"
)

// RunSetup runs the interactive setup wizard on in/out and returns the
// resulting config. If existing is non-nil, it is used as the default for
// each prompt (edit mode). Answers that do not parse keep the default.
func RunSetup(existing *Config, in io.Reader, out io.Writer) (*Config, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askDuration := func(prompt string, defaultVal Duration) (Duration, error) {
		ans, err := ask(prompt, defaultVal.Std().String())
		if err != nil {
			return 0, err
		}
		d, err := time.ParseDuration(ans)
		if err != nil || d <= 0 {
			fmt.Fprintf(out, "  %q is not a positive duration, keeping %s\n", ans, defaultVal.Std())
			return defaultVal, nil
		}
		return Duration(d), nil
	}

	cfg := Defaults()
	if existing != nil {
		cfg = Merge(existing, nil)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │     dwell — first-time setup    │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error

	cfg.DataDir, err = ask("  Where to store activity records", cfg.DataDir)
	if err != nil {
		return nil, err
	}

	cfg.CollectionInterval, err = askDuration("  Sample the active window every", cfg.CollectionInterval)
	if err != nil {
		return nil, err
	}

	cfg.AFKThreshold, err = askDuration("  Count as away after being idle for", cfg.AFKThreshold)
	if err != nil {
		return nil, err
	}

	pct, err := ask("  Hide entries at or below this share of a bucket (%)", cfg.MinPercentage)
	if err != nil {
		return nil, err
	}
	if _, perr := timeline.ParsePercentage(pct); perr == nil {
		cfg.MinPercentage = pct
	} else {
		fmt.Fprintf(out, "  %q is not a percentage, keeping %s\n", pct, cfg.MinPercentage)
	}

	style, err := ask("  Date style for --start/--end (uk/us)", cfg.DateStyle)
	if err != nil {
		return nil, err
	}
	if strings.ToLower(style) == "us" {
		cfg.DateStyle = "us"
	} else {
		cfg.DateStyle = "uk"
	}

	fmt.Fprintln(out)
	return &cfg, nil
}
