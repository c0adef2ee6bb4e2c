// Command foodbot runs the MyFood Telegram ordering bot: it authenticates
// users against the commerce backend, lets them browse products, build a
// cart, share a delivery location and confirm orders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodbot/internal/backend"
	"foodbot/internal/bot"
	"foodbot/internal/bot/middleware"
	"foodbot/internal/config"
	"foodbot/internal/geo"
	"foodbot/internal/logger"
	"foodbot/internal/order"
	"foodbot/internal/session"
	"log/slog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "foodbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Profile: cfg.Logging.Profile,
	})

	client := backend.New(cfg.Backend.URL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
	sessions := session.NewMemoryStore()
	carts := session.NewMemoryCartStore()
	locker := session.NewLocker()

	wf := order.NewWorkflow(
		client,
		sessions,
		carts,
		geo.Coord{Lat: cfg.Restaurant.Lat, Lng: cfg.Restaurant.Lng},
		geo.Tariff{
			BaseFare:     cfg.Delivery.BaseFare,
			FreeRadiusKm: cfg.Delivery.FreeRadiusKm,
			PerKmRate:    cfg.Delivery.PerKmRate,
		},
	)

	reg := bot.NewRegistry()
	handlers := bot.NewHandlers(wf)
	handlers.Register(reg)

	middlewares := []bot.Middleware{
		{Name: "recover", Use: middleware.Recover},
		{Name: "serialize", Use: middleware.Serialize(locker)},
		{Name: "logging", Use: middleware.Logging},
	}
	if cfg.RateLimit.IntervalMS > 0 {
		exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, kind := range cfg.RateLimit.ExcludeUpdates {
			exclude[kind] = struct{}{}
		}
		middlewares = append(middlewares, bot.Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimit(middleware.RateLimitOptions{
				Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:  exclude,
			}),
		})
	}

	routes := bot.CommandRoutes(reg)
	routes = append(routes, bot.CallbackRoute(reg), bot.LocationRoute(handlers))

	startedAt := time.Now()
	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.String("run_mode", cfg.Telegram.RunMode),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = bot.Run(ctx, bot.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Middlewares: middlewares,
		Routes:      routes,
	})

	logger.L.With("component", "app").Info("shutting down...",
		slog.String("event", "shutdown"),
	)
	return err
}
