package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// Setup builds the process logger and makes it the slog default. logFile is
// "stdout" or a path opened for appending; if the file cannot be opened the
// logger falls back to stdout and says so.
func Setup(logLevel string, logFile string) *slog.Logger {
	level.Set(getLogLevel(logLevel))
	handlerOptions := &slog.HandlerOptions{Level: level}

	var logWriter io.Writer = os.Stdout
	var openErr error
	if logFile != "" && logFile != "stdout" {
		file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 -- path provided via config.
		if err != nil {
			openErr = err
		} else {
			logWriter = file
		}
	}

	logger := slog.New(slog.NewTextHandler(logWriter, handlerOptions))
	slog.SetDefault(logger)
	if openErr != nil {
		logger.Error("failed to open log file, logging to stdout", "file", logFile, "error", openErr)
	}
	return logger
}

// SetLevel changes the level of every logger created by Setup.
func SetLevel(logLevel string) {
	level.Set(getLogLevel(logLevel))
}

func getLogLevel(logLevel string) slog.Level {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return level
}
