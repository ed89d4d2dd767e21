package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"supplyledger/internal/access"
	assethandler "supplyledger/internal/asset/handler"
	assetmetrics "supplyledger/internal/asset/metrics"
	assetservice "supplyledger/internal/asset/service"
	"supplyledger/internal/idempotency"
	jwttoken "supplyledger/internal/jwt_token"
	"supplyledger/internal/ledger"
	"supplyledger/internal/platform/config"
	"supplyledger/internal/platform/httpserver"
	"supplyledger/internal/platform/logger"
	"supplyledger/internal/platform/metrics"
	registryhandler "supplyledger/internal/registry/handler"
	registryservice "supplyledger/internal/registry/service"
	transferhandler "supplyledger/internal/transfer/handler"
	transfermetrics "supplyledger/internal/transfer/metrics"
	transferservice "supplyledger/internal/transfer/service"
	httptransport "supplyledger/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "supplyledger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using development key")
	}
	gate, err := access.ParseAdmins(cfg.Ledger.AdminList())
	if err != nil {
		return fmt.Errorf("LEDGER_ADMINS: %w", err)
	}
	if len(gate.Administrators()) == 0 {
		log.Warn("no administrators configured, participants cannot be approved")
	}

	backing, err := openBacking(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backing.Close()

	reg := prometheus.DefaultRegisterer
	registry := registryservice.New(backing.store, gate, registryservice.WithLogger(log))
	assets := assetservice.New(backing.store, gate,
		assetservice.WithLogger(log),
		assetservice.WithMetrics(assetmetrics.New(reg)),
	)
	transfers := transferservice.New(backing.store, gate, assets,
		transferservice.WithLogger(log),
		transferservice.WithMetrics(transfermetrics.New(reg)),
	)

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Validator:      jwttoken.NewJWTServiceAdapter(tokens),
		Idempotency:    idempotency.New(backing.idempotency, log, idempotency.WithTTL(cfg.Redis.IdempotencyTTL)),
		RequestTimeout: cfg.Server.RequestTimeout,
		Modules: []httptransport.Registrar{
			registryhandler.New(registry, log),
			assethandler.New(assets, log),
			transferhandler.New(transfers, log),
		},
		Events: ledger.NewFeed(backing.store),
		Checks: backing.checks,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	if backing.relay != nil {
		g.Go(func() error {
			return backing.relay.Run(gctx)
		})
	}

	log.Info("supplyledger started",
		"addr", cfg.Server.Addr,
		"store", backing.kind,
		"relay", backing.relay != nil,
	)
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("supplyledger stopped")
	return nil
}
