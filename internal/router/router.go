package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiosk-pos/api/internal/config"
	"github.com/kiosk-pos/api/internal/database"
	"github.com/kiosk-pos/api/internal/handler"
	mw "github.com/kiosk-pos/api/internal/middleware"
	"github.com/kiosk-pos/api/internal/service"
	"github.com/kiosk-pos/api/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New creates a Chi router with all application routes wired up.
// Kiosk routes are public; order list, payment and cancel require a staff token.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Order board (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Sessions
	sessionService := service.NewSessionService(
		pool,
		func(db database.DBTX) service.SessionStore {
			return database.New(db)
		},
		cfg.SessionTTL,
	)
	handler.NewSessionHandler(sessionService).RegisterRoutes(r)

	// Orders
	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore {
			return database.New(db)
		},
		cfg.Location,
	)
	orderHandler := handler.NewOrderHandler(orderService, hub)
	orderHandler.RegisterRoutes(r)

	// Staff routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireStaff)
		orderHandler.RegisterStaffRoutes(r)
	})

	log.Println("Router initialized with all handlers")
	return r
}
