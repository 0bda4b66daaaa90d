// Package main is the entry point for the FitBuddy HTTP API.
//
// The api serves profiles, workouts, buddy matching and leaderboards over
// REST, streams domain events over a websocket and, unless a separate
// worker handles it, awards achievement badges as activity comes in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fitbuddy/fitbuddy-hub/config"
	"github.com/fitbuddy/fitbuddy-hub/internal/app"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/fitbuddy/fitbuddy-hub/internal/interface/http"
	"github.com/fitbuddy/fitbuddy-hub/internal/interface/http/handlers"
	"github.com/fitbuddy/fitbuddy-hub/pkg/circuitbreaker"
	"github.com/fitbuddy/fitbuddy-hub/pkg/logger"
)

func main() {
	hashKey := flag.String("hash-key", "", "print the bcrypt hash for an API key and exit")
	noHandlers := flag.Bool("no-event-handlers", false, "leave badge awarding to the worker")
	flag.Parse()

	if *hashKey != "" {
		hash, err := handlers.HashAPIKey(*hashKey, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, !*noHandlers); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, withEventHandlers bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewSlogLogger(cfg)
	log.Info("starting FitBuddy API",
		"port", cfg.HTTP.Port,
		"redis", !cfg.Redis.Disabled,
		"event_handlers", withEventHandlers,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE AND MESSAGING
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION
	// ─────────────────────────────────────────────────────────────────────────
	application := app.NewApplication(infra, log)
	if withEventHandlers {
		if err := application.RegisterEventHandlers(infra); err != nil {
			return fmt.Errorf("register event handlers: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	deps := application.HTTPDependencies(infra)
	deps.Logger = app.NewRequestLogger(cfg)
	deps.Version = cfg.App.Version

	if len(cfg.Auth.APIKeyHashes) > 0 {
		deps.Auth = handlers.NewAPIKeyAuth("", cfg.Auth.APIKeyHashes)
	} else {
		log.Warn("no API keys configured, write routes are open")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.RateLimit > 0 {
		local := handlers.NewLocalRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		g.Go(func() error {
			local.Run(gctx)
			return nil
		})
		deps.RateLimiter = local

		if infra.Redis != nil {
			shared := redis.NewRateLimiter(infra.Redis, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
			breaker := circuitbreaker.RedisBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("rate limiter circuit changed", "breaker", name, "from", from.String(), "to", to.String())
			})
			deps.RateLimiter = handlers.NewFallbackRateLimiter(shared, local, breaker)
		}
	}

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins

	server, err := httpapi.NewServer(serverCfg, deps)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	start := time.Now()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		deps.Logger.Error("api stopped with error", logger.Err(err))
		return err
	}

	log.Info("FitBuddy API stopped", "uptime", time.Since(start).Round(time.Second))
	return nil
}
