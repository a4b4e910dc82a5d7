package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/holiman/uint256"
)

const BritishTimeFormat = "02.01.2006 15:04:05"

// Config represents logger configuration from environment/config
// LogLevel is a string like "debug", "info", "error";
// LogHumanFriendly toggles between text (true) and JSON (false).
// Service, when set, is attached to every record.
type Config struct {
	LogLevel         string
	LogHumanFriendly bool
	Service          string
}

// ParseLevel converts a string to slog.Level, defaulting to Info on error.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(level))
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewFromConfig creates a slog.Logger based on Config writing to stdout.
func NewFromConfig(cfg Config) *slog.Logger {
	return New(os.Stdout, cfg)
}

// New creates a slog.Logger based on Config writing to w.
func New(w io.Writer, cfg Config) *slog.Logger {
	lvl := ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				// Format time as British timestamp
				return slog.String(slog.TimeKey, a.Value.Time().Format(BritishTimeFormat))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.LogHumanFriendly {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	log := slog.New(handler)
	if cfg.Service != "" {
		log = log.With(slog.String("service", cfg.Service))
	}
	return log
}

// Amount renders a token amount as a decimal string attribute; nil logs as zero.
func Amount(key string, v *uint256.Int) slog.Attr {
	if v == nil {
		return slog.String(key, "0")
	}
	return slog.String(key, v.Dec())
}
