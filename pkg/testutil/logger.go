// Package testutil provides shared test helpers.
package testutil

import (
	"log/slog"
	"os"
)

// testLogEnvVar controls test log verbosity: "debug" or "info". Unset
// suppresses everything below error so test output stays quiet.
const testLogEnvVar = "ROADMATCH_TEST_LOG"

func NewLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv(testLogEnvVar) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
