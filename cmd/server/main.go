package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/account"
	"github.com/papertrade/api/internal/admin"
	"github.com/papertrade/api/internal/auth"
	"github.com/papertrade/api/internal/catalog"
	"github.com/papertrade/api/internal/config"
	"github.com/papertrade/api/internal/metrics"
	"github.com/papertrade/api/internal/notify"
	"github.com/papertrade/api/internal/store"
	"github.com/papertrade/api/internal/trading"
	"github.com/papertrade/api/internal/watchlist"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	initialBalance, err := decimal.NewFromString(cfg.InitialWalletBalance)
	if err != nil || initialBalance.IsNegative() {
		slog.Error("invalid INITIAL_WALLET_BALANCE", "value", cfg.InitialWalletBalance)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			slog.Error("migration failed", "err", err)
			os.Exit(1)
		}
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache for product reads if
		// configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis product cache enabled", "ttl", cfg.CacheTTL)
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

	// --- WebSocket hub ---
	hub := notify.NewHub()
	go hub.Run()

	// --- Services ---
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	notifySvc := notify.NewService(st)
	accountSvc := account.NewService(st, issuer, initialBalance)
	catalogSvc := catalog.NewService(st, notifySvc, hub)
	tradingSvc := trading.NewService(st, notifySvc, hub)
	watchlistSvc := watchlist.NewService(st)
	adminSvc := admin.NewService(st, notifySvc)

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
		w.Write([]byte(`{"status":"ok","service":"papertrade"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time price and trade events.
		r.Get("/ws", hub.HandleWS)

		// Public.
		r.Post("/auth/register", accountSvc.Register)
		r.Post("/auth/login", accountSvc.Login)

		r.Get("/products", catalogSvc.List)
		r.Get("/products/category/{category}", catalogSvc.ByCategory)
		r.Get("/products/{productID}", catalogSvc.Get)

		// Authenticated.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(issuer, st))

			r.Get("/auth/profile", accountSvc.GetProfile)
			r.Put("/auth/profile", accountSvc.UpdateProfile)

			r.Post("/transactions/buy", tradingSvc.Buy)
			r.Post("/transactions/sell", tradingSvc.Sell)
			r.Get("/transactions/my", tradingSvc.MyTransactions)
			r.Get("/transactions/stats", tradingSvc.Stats)

			r.Get("/portfolio", tradingSvc.Portfolio)
			r.Get("/portfolio/summary", tradingSvc.PortfolioSummary)

			r.Post("/orders", tradingSvc.CreateOrder)
			r.Get("/orders", tradingSvc.ListOrders)
			r.Get("/orders/{orderID}", tradingSvc.GetOrder)
			r.Delete("/orders/{orderID}", tradingSvc.CancelOrder)

			r.Get("/watchlist", watchlistSvc.List)
			r.Post("/watchlist", watchlistSvc.Add)
			r.Delete("/watchlist/{productID}", watchlistSvc.Remove)

			r.Post("/alerts", watchlistSvc.CreateAlert)
			r.Get("/alerts", watchlistSvc.ListAlerts)
			r.Delete("/alerts/{alertID}", watchlistSvc.DeleteAlert)

			r.Get("/notifications", notifySvc.List)
			r.Put("/notifications/read-all", notifySvc.MarkAllRead)
			r.Put("/notifications/{notificationID}/read", notifySvc.MarkRead)
			r.Delete("/notifications/{notificationID}", notifySvc.Delete)

			r.Post("/kyc", accountSvc.SubmitKYC)
			r.Get("/kyc/my", accountSvc.MyKYC)

			// Admin only.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Post("/products", catalogSvc.Create)
				r.Put("/products/{productID}", catalogSvc.Update)
				r.Put("/products/{productID}/price", catalogSvc.UpdatePrice)
				r.Delete("/products/{productID}", catalogSvc.Delete)

				r.Get("/admin/users", adminSvc.ListUsers)
				r.Get("/admin/users/{userID}", adminSvc.GetUser)
				r.Put("/admin/users/{userID}/wallet", adminSvc.AdjustWallet)
				r.Put("/admin/users/{userID}/role", adminSvc.ChangeRole)
				r.Delete("/admin/users/{userID}", adminSvc.DeleteUser)

				r.Get("/admin/kyc", adminSvc.ListKYC)
				r.Put("/admin/kyc/{kycID}/status", adminSvc.ReviewKYC)

				r.Get("/admin/audit-logs", adminSvc.AuditLogs)
				r.Get("/admin/analytics", adminSvc.Analytics)
			})
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("papertrade listening", "port", cfg.Port)
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

	slog.Info("shutting down papertrade...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("papertrade stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
