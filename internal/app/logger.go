package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog.Logger. Deployments set
// LOG_FORMAT=json; anything else gets the human-readable text handler.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
