// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command storebot runs the retail analytics chat assistant.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storebot",
	Short: "Conversational analytics assistant for the store database",
	Long: `storebot answers natural-language questions about the store's sales,
inventory, employees, customers and suppliers by routing them to a fixed
catalog of analytical reports, with a language-model fallback for
questions no routing rule covers.`,
}

func main() {
	// Local development convenience; absent .env is fine.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env")
	}
	setupLogging()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
