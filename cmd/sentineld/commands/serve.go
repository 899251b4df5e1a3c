package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sentineld/sentineld/internal/accessguard"
	"github.com/sentineld/sentineld/internal/config"
	"github.com/sentineld/sentineld/internal/httpapi"
	"github.com/sentineld/sentineld/internal/metrics"
	"github.com/sentineld/sentineld/internal/supervisor"
	"github.com/sentineld/sentineld/internal/tokenstore"
)

// ServeCmd starts the supervisor's daemon fleet and control API, and blocks
// until SIGINT/SIGTERM.
type ServeCmd struct {
	ListenAddr string `name:"listen-addr" help:"Override the control API listen address from the fleet config"`
	Metrics    bool   `name:"metrics" help:"Record daemon lifecycle metrics with Prometheus instead of the no-op recorder"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	fleet, _, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load fleet config: %w", err)
	}

	listenAddr := fleet.HTTP.ListenAddr
	if s.ListenAddr != "" {
		listenAddr = s.ListenAddr
	}

	store, err := tokenstore.Open(fleet.Access.SQLitePath, time.Duration(fleet.Access.InvitationTTLHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("token store close failed", "error", err)
		}
	}()

	guard := accessguard.New(store, fleet.Access.RateLimitPerMinute)
	sup := supervisor.New(root.Config)
	if s.Metrics {
		sup.Recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if ok, msg := sup.Start(ctx); !ok {
		return fmt.Errorf("start fleet: %s", msg)
	}
	slog.Info("fleet started")

	server := httpapi.New(listenAddr, sup, guard)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start control api: %w", err)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := server.Stop(stopCtx); err != nil {
		slog.Warn("control api shutdown error", "error", err)
	}
	if ok, msg := sup.Stop(stopCtx); !ok {
		return fmt.Errorf("stop fleet: %s", msg)
	}

	slog.Info("fleet stopped")
	return nil
}
