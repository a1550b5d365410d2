// Package logging builds the root zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/andesco/allorigins/pkg/config"
)

// New returns a logger writing to os.Stderr at the configured level.
func New(cfg config.Config) (zerolog.Logger, error) {
	return NewWriter(os.Stderr, isTerminal(os.Stderr), cfg)
}

// NewWriter returns a logger writing to w. With log_format auto, tty decides
// between console and JSON output.
func NewWriter(w io.Writer, tty bool, cfg config.Config) (zerolog.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer
	switch cfg.LogFormat {
	case config.FormatConsole:
		out = consoleWriter(w, !tty)
	case config.FormatJSON:
		out = w
	case config.FormatAuto, "":
		if tty {
			out = consoleWriter(w, false)
		} else {
			out = w
		}
	default:
		return zerolog.Nop(), fmt.Errorf("%w: log_format %q", config.ErrInvalid, cfg.LogFormat)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func consoleWriter(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
