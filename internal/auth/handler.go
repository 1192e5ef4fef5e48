package auth

import (
	"net/http"

	"merco/internal/httputil"
)

// Handler exposes the auth Service over HTTP.
type Handler struct {
	svc         *Service
	profectMode string
}

// NewHandler wraps svc for HTTP use. profectMode gates whether
// email/password registration and login are available (both disabled in
// production, the
// way the original deployment relied on Telegram auth instead).
func NewHandler(svc *Service, profectMode string) *Handler {
	mode := profectMode
	if mode == "" {
		mode = "development"
	}
	return &Handler{svc: svc, profectMode: mode}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new credential and immediately logs in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.profectMode == "production" {
		httputil.WriteError(w, http.StatusForbidden, "email auth is disabled in production mode")
		return
	}
	var req registerRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Register(r.Context(), req.Email, req.Password); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"access_token": token})
}

// Login exchanges email/password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.profectMode == "production" {
		httputil.WriteError(w, http.StatusForbidden, "email auth is disabled in production mode")
		return
	}
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

// Mode reports whether auth is running in development or production mode.
func (h *Handler) Mode(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"mode": h.profectMode})
}
