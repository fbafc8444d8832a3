package cachify

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging installs the default Cachify logger: a slog.TextHandler
// writing to stdout, leveled by the CACHIFY_DEBUG environment variable
// ("true" selects Debug, anything else Info). Applications that already
// configure slog's default logger may skip this.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)
	if os.Getenv("CACHIFY_DEBUG") == "true" {
		logLevel.Set(slog.LevelDebug)
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel overrides the level configured by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
