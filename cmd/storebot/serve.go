// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/mercadolabs/storebot/services/assistant"
	"github.com/mercadolabs/storebot/services/assistant/agent"
	"github.com/mercadolabs/storebot/services/assistant/catalog"
	"github.com/mercadolabs/storebot/services/assistant/routing"
	"github.com/mercadolabs/storebot/services/llm"
	"github.com/mercadolabs/storebot/services/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing()
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer shutdownTracing()

	year := envInt("OPERATING_YEAR", 2025)
	registry := catalog.NewRegistry(year)

	rules, err := routing.DefaultIntentRules()
	if err != nil {
		return err
	}
	matcher, err := routing.NewMatcher(registry, rules, year, nil)
	if err != nil {
		return err
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, err := store.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	executor := store.NewExecutor(db, time.Duration(envInt("QUERY_TIMEOUT_SECONDS", 15))*time.Second, slog.Default())

	chat, err := llm.NewOpenAIClient()
	if err != nil {
		return err
	}

	orchestrator, err := agent.NewOrchestrator(registry, matcher, executor, chat, slog.Default())
	if err != nil {
		return err
	}

	limiter := assistant.NewClientLimiter(rate.Limit(envInt("CHAT_RATE_LIMIT", 5)), envInt("CHAT_RATE_BURST", 10))
	handlers := assistant.NewHandlers(orchestrator, limiter, slog.Default())

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("storebot"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)

	addr := ":" + strconv.Itoa(envInt("PORT", 8080))
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			slog.String("addr", addr),
			slog.Int("reports", len(registry.List())),
			slog.Int("operating_year", year))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// setupTracing installs a stdout span exporter when TRACE_STDOUT is set.
// Without it, spans are recorded against the default no-op provider.
func setupTracing() (func(), error) {
	if os.Getenv("TRACE_STDOUT") == "" {
		return func() {}, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer provider shutdown", slog.String("error", err.Error()))
		}
	}, nil
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using fallback",
			slog.String("name", name), slog.String("value", v))
		return fallback
	}
	return n
}
