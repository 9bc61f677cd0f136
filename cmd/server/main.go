package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/openvault/fund-engine/internal/access"
	"github.com/openvault/fund-engine/internal/api"
	"github.com/openvault/fund-engine/internal/custody"
	"github.com/openvault/fund-engine/internal/ledger"
	"github.com/openvault/fund-engine/internal/metrics"
	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/notify"
	"github.com/openvault/fund-engine/internal/pricing"
	"github.com/openvault/fund-engine/internal/store"
	"github.com/openvault/fund-engine/internal/valuation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	variant := os.Getenv("VARIANT")
	if variant == "" {
		variant = model.VariantReported
	}

	seedAdmin := model.Principal(os.Getenv("ADMIN"))
	if seedAdmin == "" {
		slog.Error("ADMIN is required (seed admin principal)")
		os.Exit(1)
	}

	vaultAccount := model.Principal(os.Getenv("VAULT_ACCOUNT"))
	if vaultAccount == "" {
		vaultAccount = "vault"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Access registry (seeded with one Admin) ---
	registry, err := access.NewRegistry(context.Background(), st, seedAdmin)
	if err != nil {
		slog.Error("registry init failed", "err", err)
		os.Exit(1)
	}

	// --- Custody transport ---
	// MemoryBank is the development transport; production deployments
	// plug a real custody rail behind the same interface.
	bank := custody.NewMemoryBank(vaultAccount)

	// --- Valuation source + ledger config per variant ---
	cfg := ledger.Config{Variant: variant}
	switch variant {
	case model.VariantObserved:
		cfg.Source = valuation.NewObserved(bank, vaultAccount)
	case model.VariantReported, model.VariantPermissioned:
		reported := valuation.NewReported(st, registry)
		cfg.Source = reported
		cfg.Reported = reported
		cfg.Sink = model.Principal(os.Getenv("PORTFOLIO_SINK"))
		if cfg.Sink == "" {
			cfg.Sink = "portfolio"
		}
	default:
		slog.Error("unknown VARIANT", "variant", variant)
		os.Exit(1)
	}

	// --- Notification hub + coordinator ---
	hub := notify.NewHub()
	go hub.Run()
	coordinator := notify.NewCoordinator(st, hub)

	// --- Share ledger ---
	svc, err := ledger.NewService(cfg, st, registry, bank, coordinator)
	if err != nil {
		slog.Error("ledger init failed", "err", err)
		os.Exit(1)
	}

	reporter := pricing.NewReporter(st, cfg.Source)
	handler := api.NewHandler(svc, reporter, coordinator)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"fund-engine","variant":%q}`, variant)
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time event streaming.
		r.Get("/ws", hub.HandleWS)

		handler.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("fund-engine listening", "port", port, "variant", variant)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down fund-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("fund-engine stopped")
}
