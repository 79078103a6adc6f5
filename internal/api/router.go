package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careport/prescription-fulfillment/internal/auth"
	"github.com/careport/prescription-fulfillment/internal/order"
	"github.com/careport/prescription-fulfillment/internal/pharmacy"
	"github.com/careport/prescription-fulfillment/internal/prescription"
)

type RouterConfig struct {
	Prescriptions *prescription.Service
	Finder        *pharmacy.Finder
	Orders        *order.Service
	Users         auth.UserStore
	Issuer        *auth.TokenIssuer
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Auth endpoints
	ah := NewAuthHandler(cfg.Users, cfg.Issuer)
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	// Everything else requires a bearer token
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(cfg.Issuer))

		pr.Route("/prescriptions", func(r chi.Router) {
			r.With(auth.RequireRole(auth.RoleDoctor)).Post("/", createPrescriptionHandler(cfg.Prescriptions))
			r.Get("/", listPrescriptionsHandler(cfg.Prescriptions))
			r.Get("/{id}", getPrescriptionHandler(cfg.Prescriptions))
			r.With(auth.RequireRole(auth.RoleDoctor)).Post("/{id}/cancel", cancelPrescriptionHandler(cfg.Prescriptions))
			r.Get("/{id}/find-pharmacies", findPharmaciesHandler(cfg.Finder))
		})

		pr.Route("/orders", func(r chi.Router) {
			r.With(auth.RequireRole(auth.RolePatient)).Post("/", createOrderHandler(cfg.Orders))
			r.Get("/", listOrdersHandler(cfg.Orders))
			r.Get("/{id}", getOrderHandler(cfg.Orders))
			r.With(auth.RequireRole(auth.RolePatient)).Post("/{id}/confirm", confirmOrderHandler(cfg.Orders))
			r.With(auth.RequireRole(auth.RolePatient)).Post("/{id}/cancel", cancelOrderHandler(cfg.Orders))
			r.With(auth.RequireRole(auth.RolePharmacist)).Post("/{id}/reject", rejectOrderHandler(cfg.Orders))
			r.With(auth.RequireRole(auth.RolePharmacist)).Post("/{id}/dispense", dispenseOrderHandler(cfg.Orders))
		})
	})

	return r
}
