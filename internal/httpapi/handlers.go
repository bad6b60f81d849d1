package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"projgate.org/internal/auth"
	"projgate.org/internal/obs"
	"projgate.org/internal/projects"
)

const serviceName = "projgate-api"

// ReadinessChecker reports whether dependencies are reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe is always ready; used when no database is configured.
type ReadyProbe struct{}

func (ReadyProbe) Check(context.Context) error { return nil }

// AuthService is the auth surface the HTTP layer depends on.
type AuthService interface {
	Register(ctx context.Context, email, password string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (string, auth.Principal, error)
}

// Options wires the API to its collaborators.
type Options struct {
	Auth     AuthService
	Tokens   AccessValidator
	Projects *projects.Service
	// General applies to every route, Strict additionally to /auth/*.
	General Limiter
	Strict  Limiter
	// TrustedProxies may set the client address via X-Forwarded-For.
	TrustedProxies TrustedProxies

	Readiness    ReadinessChecker
	MaxBodyBytes int64
	Version      string
}

// API: HTTP слой.
type API struct {
	router       *mux.Router
	auth         AuthService
	projects     *projects.Service
	readiness    ReadinessChecker
	maxBodyBytes int64
	version      string
}

func New(opts Options) (*API, error) {
	switch {
	case opts.Auth == nil:
		return nil, errors.New("httpapi: auth service is required")
	case opts.Tokens == nil:
		return nil, errors.New("httpapi: access validator is required")
	case opts.Projects == nil:
		return nil, errors.New("httpapi: project service is required")
	case opts.General == nil || opts.Strict == nil:
		return nil, errors.New("httpapi: both rate governors are required")
	}
	if opts.Readiness == nil {
		opts.Readiness = ReadyProbe{}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	a := &API{
		router:       mux.NewRouter(),
		auth:         opts.Auth,
		projects:     opts.Projects,
		readiness:    opts.Readiness,
		maxBodyBytes: opts.MaxBodyBytes,
		version:      opts.Version,
	}

	// Gates run in this order: general governor, strict governor (auth
	// routes), identity, role.
	public := Chain(RateGate("general", opts.General, opts.TrustedProxies))
	authRoutes := public.With(RateGate("auth", opts.Strict, opts.TrustedProxies))
	protected := public.With(IdentityGate(opts.Tokens))
	adminOnly := protected.With(RoleGate(auth.RoleAdmin))

	r := a.router
	r.Handle("/health", public.ThenFunc(a.Health)).Methods(http.MethodGet)
	r.Handle("/healthz", public.ThenFunc(a.Healthz)).Methods(http.MethodGet)
	r.Handle("/readyz", public.ThenFunc(a.Ready)).Methods(http.MethodGet)
	r.Handle("/metrics", public.Then(obs.Handler())).Methods(http.MethodGet)

	r.Handle("/auth/register", authRoutes.ThenFunc(a.register)).Methods(http.MethodPost)
	r.Handle("/auth/login", authRoutes.ThenFunc(a.login)).Methods(http.MethodPost)
	r.Handle("/auth/refresh", authRoutes.ThenFunc(a.refresh)).Methods(http.MethodPost)

	r.Handle("/projects", protected.ThenFunc(a.createProject)).Methods(http.MethodPost)
	r.Handle("/projects", protected.ThenFunc(a.listProjects)).Methods(http.MethodGet)
	r.Handle("/projects/{id}", protected.ThenFunc(a.getProject)).Methods(http.MethodGet)
	r.Handle("/projects/{id}", protected.ThenFunc(a.updateProject)).Methods(http.MethodPut)
	r.Handle("/projects/{id}", adminOnly.ThenFunc(a.deleteProject)).Methods(http.MethodDelete)

	r.NotFoundHandler = public.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowedHandler = public.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return a, nil
}

// Handler возвращает http.Handler для сервера со всеми middleware.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

// Health is the liveness probe with a server timestamp.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

type errorBody struct {
	Error     string            `json:"error"`
	Reason    string            `json:"reason,omitempty"`
	Errors    []auth.FieldError `json:"errors,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorBody(w, r, code, errorBody{Error: msg})
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, code int, body errorBody) {
	body.RequestID = RequestIDFromContext(r.Context())
	writeJSON(w, code, body)
}
