package main

import (
	"log/slog"
	"os"

	"github.com/terra-clan/dungeon-engine/internal/cli"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cli.Execute()
}
