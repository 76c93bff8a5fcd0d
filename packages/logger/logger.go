// Package logger builds the zerolog loggers used by services and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

var (
	once   sync.Once
	logger *zerolog.Logger
)

// Options controls logger construction. Zero values fall back to the
// LOG_LEVEL and ENV environment variables.
type Options struct {
	Out     io.Writer
	Level   string
	Env     string
	NoColor bool
}

// Get returns the process-wide logger, built from the environment on first call.
func Get() *zerolog.Logger {
	once.Do(func() {
		l, err := New(Options{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v; defaulting to 'info'\n", err)
		}
		logger = l
	})
	return logger
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// New builds a console logger for development environments and a JSON
// logger otherwise. An invalid level is reported and replaced by info.
func New(opts Options) (*zerolog.Logger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	env := opts.Env
	if env == "" {
		env = os.Getenv("ENV")
	}
	levelStr := opts.Level
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, err := ParseLevel(levelStr)

	var zl zerolog.Logger
	if env == "development" || env == "dev" || env == "" {
		zl = newDevelopment(out, opts.NoColor)
	} else {
		zl = newProduction(out)
	}
	zl = zl.Level(level)
	return &zl, err
}

// ParseLevel parses a level name, defaulting to info when s is empty.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func colorize(s any, c int, noColor bool) string {
	if noColor {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

func newDevelopment(out io.Writer, noColor bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i any) string {
			ll, ok := i.(string)
			if !ok {
				ll = fmt.Sprintf("%v", i)
			}
			switch ll {
			case "trace":
				return colorize("TRC", colorMagenta, noColor)
			case "debug":
				return colorize("DBG", colorYellow, noColor)
			case "info":
				return colorize("INF", colorGreen, noColor)
			case "warn", "error", "fatal", "panic":
				return colorize(strings.ToUpper(ll)[0:3], colorRed, noColor)
			default:
				if len(ll) > 3 {
					ll = ll[0:3]
				}
				return colorize(strings.ToUpper(ll), colorBold, noColor)
			}
		},
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

func newProduction(out io.Writer) zerolog.Logger {
	return zerolog.New(out).With().Timestamp().Logger()
}
