package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/winsight/server/internal/alerts"
	"github.com/obsidianstack/winsight/server/internal/api"
	"github.com/obsidianstack/winsight/server/internal/auth"
	"github.com/obsidianstack/winsight/server/internal/config"
	"github.com/obsidianstack/winsight/server/internal/metrics"
	"github.com/obsidianstack/winsight/server/internal/receiver"
	"github.com/obsidianstack/winsight/server/internal/store"
	"github.com/obsidianstack/winsight/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("winsight-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.SlogLevel())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"report_ttl", cfg.Server.Report.TTL,
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(cfg.Server.Report.TTL)
	go st.Run(ctx)

	alertEngine := alerts.New(cfg.Server.Alerts)
	m := metrics.New(st)

	requireKey := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	hub := ws.New(st, alertEngine, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/reports", requireKey(receiver.New(st, alertEngine, m, cfg.Server.Report.MaxBodyBytes)))
	mux.Handle("/api/", requireKey(api.New(st, alertEngine)))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", m.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("winsight-server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
