package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"merco/internal/auth"
	"merco/internal/httputil"
)

// RouterDeps collects every handler the router dispatches to.
type RouterDeps struct {
	AuthHandler     *auth.Handler
	AuthService     *auth.Service
	BacktestHandler *BacktestHandler
	TaskWS          http.Handler
}

// NewRouter wires the full HTTP surface: unauthenticated auth and
// strategy-listing routes, an unauthenticated live event stream, and
// authenticated backtest CRUD underneath WithAuth.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/mode", d.AuthHandler.Mode)
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Get("/strategies", d.BacktestHandler.Strategies)
		r.Get("/backtests/ws", d.TaskWS.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Post("/backtests", d.BacktestHandler.Create)
			r.Get("/backtests", d.BacktestHandler.List)
			r.Get("/backtests/{id}", d.BacktestHandler.Get)
			r.Post("/backtests/{id}/cancel", d.BacktestHandler.Cancel)
			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				httputil.WriteJSON(w, http.StatusOK, map[string]string{"user_id": userID})
			})
		})
	})

	return r
}
