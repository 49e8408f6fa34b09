/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/auth/*         Registration and login (public)
  /api/tasks          Task listing (public); completion requires auth
  /api/profile, /api/transactions, /api/referrals, /api/withdrawals
                      Authenticated account surface
  /api/admin/*        Admin console (admin token required)
  /api/health         Liveness probe (public)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authentication middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		// Task routes
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Get("/{id}", h.GetTask)
			r.With(h.RequireAuth).Post("/{id}/complete", h.CompleteTask)
		})

		// Account routes (authenticated)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/profile", h.Profile)
			r.Get("/transactions", h.Transactions)
			r.Get("/referrals", h.ReferralStats)
			r.Post("/withdrawals", h.RequestWithdrawal)
			r.Get("/withdrawals", h.MyWithdrawals)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/dashboard", h.Dashboard)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Get("/{id}", h.GetUser)
				r.Put("/{id}", h.UpdateUser)
				r.Get("/{id}/reconcile", h.ReconcileUser)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.ListAllTasks)
				r.Post("/", h.CreateTask)
				r.Put("/{id}", h.UpdateTask)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/", h.ListWithdrawals)
				r.Get("/stats", h.WithdrawalStats)
				r.Post("/{id}/approve", h.ApproveWithdrawal)
				r.Post("/{id}/reject", h.RejectWithdrawal)
			})
		})
	})

	return r
}
