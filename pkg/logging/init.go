package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// Setup installs the default slog logger writing to w.
func Setup(loggingType, logLevelName string, w io.Writer) error {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(logLevelName)); err != nil {
		return fmt.Errorf("could not parse log level: %v", err)
	}

	var handler slog.Handler
	switch loggingType {
	case JSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	case Text:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	case Tint:
		handler = tint.NewHandler(w, &tint.Options{Level: logLevel})
	default:
		return fmt.Errorf("unknown logging type: %s", loggingType)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Initialize is Setup targeting stderr, keeping stdout free for reports.
func Initialize(loggingType, logLevelName string) error {
	return Setup(loggingType, logLevelName, os.Stderr)
}
