package main

import (
	"log/slog"
	"os"

	"github.com/bordercore/drill/internal/profile"
)

// initLogger installs the process-wide slog handler. Dev builds log debug
// text for readability; prod logs JSON for ingestion.
func initLogger(profile *profile.Profile) {
	var handler slog.Handler
	if profile.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}
