// Package httpapi exposes the auth core over HTTP. Web and mobile clients
// share handlers but hit separate route trees, /api/web/v1 and
// /api/mobile/v1, which select the token context and rate-limit budget.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gatehouse-labs/gatehouse"
	"github.com/gatehouse-labs/gatehouse/metrics"
	"github.com/gatehouse-labs/gatehouse/middleware"
	"github.com/gatehouse-labs/gatehouse/token"
)

// Options wires the API's collaborators. Engine is required; the rest
// degrade gracefully when nil.
type Options struct {
	Engine  *gatehouse.Engine
	Limiter middleware.Limiter
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	DBPinger    Pinger
	CachePinger Pinger

	WebRateLimit    middleware.RateLimitConfig
	MobileRateLimit middleware.RateLimitConfig
}

// API is the HTTP surface. Build it with [New] and mount [API.Handler].
type API struct {
	engine  *gatehouse.Engine
	limiter middleware.Limiter
	metrics *metrics.Metrics
	log     *slog.Logger
	db      Pinger
	cache   Pinger

	limits map[token.Context]middleware.RateLimitConfig
}

func New(opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &API{
		engine:  opts.Engine,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		log:     log,
		db:      opts.DBPinger,
		cache:   opts.CachePinger,
		limits: map[token.Context]middleware.RateLimitConfig{
			token.Web:    opts.WebRateLimit,
			token.Mobile: opts.MobileRateLimit,
		},
	}
}

// Handler builds the full route tree, including /healthz and /metrics.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.mountContext(mux, token.Web, "/api/web/v1")
	a.mountContext(mux, token.Mobile, "/api/mobile/v1")
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", a.metrics.Handler())
	return mux
}

func (a *API) mountContext(mux *http.ServeMux, tc token.Context, base string) {
	auth := middleware.RequireAuth(a.engine)
	limit := func(next http.Handler) http.Handler { return next }
	if cfg := a.limits[tc]; a.limiter != nil && cfg.Max > 0 {
		limit = middleware.RateLimit(a.limiter, cfg, a.metrics, a.log)
	}

	handle := func(pattern string, h http.Handler, wrappers ...func(http.Handler) http.Handler) {
		for i := len(wrappers) - 1; i >= 0; i-- {
			h = wrappers[i](h)
		}
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+base+path, limit(h))
	}

	handle("POST /auth/register", a.handleRegister(tc))
	handle("POST /auth/login", a.handleLogin(tc))
	handle("POST /auth/refresh", a.handleRefresh(tc))
	handle("POST /auth/logout", a.handleLogout())

	handle("GET /profile", a.handleProfile(), auth)
	handle("PATCH /profile", a.handleUpdateProfile(), auth,
		middleware.RequirePermission("profile:update"))

	handle("GET /users", a.handleListUsers(), auth,
		middleware.RequirePermission("user:read"))
	handle("GET /users/{id}", a.handleGetUser(), auth,
		middleware.RequirePermission("user:read"))
	handle("DELETE /users/{id}", a.handleDeleteUser(), auth,
		middleware.RequirePermission("user:delete"))
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return gatehouse.E(gatehouse.CodeValidation, "Invalid request body")
	}
	return nil
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
	Role     string  `json:"role"`
}

func (req *registerRequest) validate() error {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return gatehouse.E(gatehouse.CodeValidation, "A valid email is required")
	}
	if len(req.Password) < 8 {
		return gatehouse.E(gatehouse.CodeValidation, "Password must be at least 8 characters")
	}
	return nil
}

func (a *API) handleRegister(tc token.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, err)
			return
		}
		res, err := a.engine.Register(r.Context(), gatehouse.RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			RoleName: req.Role,
		}, tc)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "Registration successful", res)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(tc token.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, gatehouse.E(gatehouse.CodeValidation, "Email and password are required"))
			return
		}
		res, err := a.engine.Login(r.Context(), req.Email, req.Password, tc)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Login successful", res)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefresh(tc token.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.RefreshToken == "" {
			writeError(w, gatehouse.E(gatehouse.CodeValidation, "Refresh token is required"))
			return
		}
		res, err := a.engine.Refresh(r.Context(), req.RefreshToken, tc)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Token refreshed", res)
	}
}

// handleLogout blacklists the bearer token. It succeeds even without one so
// clients can always clear local state.
func (a *API) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.engine.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Logout successful", nil)
	}
}

func (a *API) handleProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := middleware.IdentityFromContext(r.Context())
		user, err := a.engine.Profile(r.Context(), id.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Profile retrieved", user.View())
	}
}

type updateProfileRequest struct {
	Name *string `json:"name"`
}

func (a *API) handleUpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateProfileRequest
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		id := middleware.IdentityFromContext(r.Context())
		user, err := a.engine.UpdateProfile(r.Context(), id.ID, req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Profile updated", user.View())
	}
}

func (a *API) handleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = 20
		}

		users, total, err := a.engine.ListUsers(r.Context(), page, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]gatehouse.UserView, 0, len(users))
		for _, u := range users {
			views = append(views, u.View())
		}
		writeList(w, "Users retrieved", views, Meta{Page: page, Limit: limit, Total: total})
	}
}

func (a *API) handleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := a.engine.Profile(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "User retrieved", user.View())
	}
}

func (a *API) handleDeleteUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.engine.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "User deleted", nil)
	}
}
