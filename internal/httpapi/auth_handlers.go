package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"projgate.org/internal/audit"
	"projgate.org/internal/auth"
	"projgate.org/internal/obs"
)

// statusClientClosedRequest is the nginx convention for a caller that
// disconnected before the response.
const statusClientClosedRequest = 499

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         auth.Role `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func newSessionResponse(s auth.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ID:           s.User.ID,
		Email:        s.User.Email,
		Role:         s.User.Role,
		CreatedAt:    s.User.CreatedAt,
	}
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{Error: "invalid_json", Reason: err.Error()})
		return
	}
	sess, err := a.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		a.handleAuthError(w, r, "register", err)
		return
	}
	obs.ObserveAuth("register", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventRegister, map[string]any{
		"user_id": sess.User.ID,
		"role":    string(sess.User.Role),
	})
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{Error: "invalid_json", Reason: err.Error()})
		return
	}
	sess, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.handleAuthError(w, r, "login", err)
		return
	}
	obs.ObserveAuth("login", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventLogin, map[string]any{
		"user_id": sess.User.ID,
		"outcome": "ok",
	})
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{Error: "invalid_json", Reason: err.Error()})
		return
	}
	access, p, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.handleAuthError(w, r, "refresh", err)
		return
	}
	obs.ObserveAuth("refresh", "ok")
	_ = audit.LogEvent(r.Context(), audit.EventRefresh, map[string]any{"user_id": p.ID})
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, event string, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		obs.ObserveAuth(event, "invalid_input")
		writeErrorBody(w, r, http.StatusBadRequest, errorBody{Error: "validation_failed", Errors: verr.Fields})
	case errors.Is(err, auth.ErrConflict):
		obs.ObserveAuth(event, "conflict")
		writeErrorBody(w, r, http.StatusConflict, errorBody{Error: "conflict", Reason: "user already exists"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		obs.ObserveAuth(event, "invalid_credentials")
		_ = audit.LogEvent(r.Context(), audit.EventLogin, map[string]any{"outcome": "invalid_credentials"})
		writeErrorBody(w, r, http.StatusUnauthorized, errorBody{Error: "unauthorized", Reason: "Invalid credentials"})
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		obs.ObserveAuth(event, "invalid_refresh_token")
		writeErrorBody(w, r, http.StatusUnauthorized, errorBody{Error: "unauthorized", Reason: "InvalidRefreshToken"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to report server-side.
		obs.ObserveAuth(event, "canceled")
		writeError(w, r, statusClientClosedRequest, "request_canceled")
	default:
		obs.ObserveAuth(event, "error")
		obs.Log("error", "auth_internal_error", map[string]any{
			"event":      event,
			"error":      err.Error(),
			"request_id": RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}
