// Command server runs the Sentinel fraud-scoring API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sentinel/risk-api/internal/api"
	"sentinel/risk-api/internal/config"
	"sentinel/risk-api/internal/domain"
	"sentinel/risk-api/internal/providers"
	"sentinel/risk-api/internal/scoring"
	"sentinel/risk-api/internal/store"
	"sentinel/risk-api/internal/verification"
	"sentinel/risk-api/internal/webhook"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	st := store.New()

	var caps scoring.CapabilitySet
	if cfg.Deterministic {
		caps = providers.NewDeterministicSet(st)
	} else {
		caps = providers.NewDemoSet(st, cfg.DemoSeed)
	}
	engine := scoring.New(caps)

	notifier := webhook.New(st)
	verifier := verification.New(st)

	if err := seedAnalyses(st, engine, cfg.SeedFile); err != nil {
		slog.Warn("seed data not loaded", "file", cfg.SeedFile, "error", err)
	}

	handler := api.NewHandler(st, engine, notifier, verifier, cfg.JWTSecret)
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:  cfg.JWTSecret,
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

// seedAnalyses replays a file of transaction contexts through the engine so
// the store starts with realistic history, customer profiles, and dashboard
// data. A missing file is not an error worth failing startup over.
func seedAnalyses(st *store.Store, engine *scoring.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var contexts []domain.TransactionContext
	if err := json.Unmarshal(data, &contexts); err != nil {
		return err
	}

	loaded := 0
	for i := range contexts {
		analysis, err := engine.Analyze(&contexts[i])
		if err != nil {
			slog.Warn("skipping invalid seed context", "index", i, "error", err)
			continue
		}
		if err := st.SaveAnalysis(analysis, &contexts[i]); err != nil {
			slog.Warn("skipping duplicate seed analysis", "index", i, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("seed data loaded", "file", path, "analyses", loaded)
	return nil
}
