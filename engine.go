package gatehouse

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gatehouse-labs/gatehouse/metrics"
	"github.com/gatehouse-labs/gatehouse/password"
	"github.com/gatehouse-labs/gatehouse/token"
)

// Deps carries the collaborators injected into [New]. Users, Roles, Sessions,
// and Codec are required; Metrics and Logger are optional.
type Deps struct {
	Users    UserStore
	Roles    RoleStore
	Sessions SessionStore
	Codec    Codec
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Engine orchestrates the register/login/refresh/logout flows and token
// verification. Safe for concurrent use after construction.
type Engine struct {
	users    UserStore
	roles    RoleStore
	sessions SessionStore
	codec    Codec
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New validates dependencies and builds an [Engine]. It fails fast when the
// blacklist cap is shorter than the longest configured access lifetime, since
// a revoked token could otherwise outlive its revocation record.
func New(d Deps, blacklistCap time.Duration) (*Engine, error) {
	if d.Users == nil || d.Roles == nil || d.Sessions == nil || d.Codec == nil {
		return nil, errors.New("gatehouse: missing required dependency")
	}
	if blacklistCap > 0 && blacklistCap < d.Codec.MaxAccessTTL() {
		return nil, errors.New("gatehouse: blacklist cap must cover the longest access-token lifetime")
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		users:    d.Users,
		roles:    d.Roles,
		sessions: d.Sessions,
		codec:    d.Codec,
		metrics:  d.Metrics,
		log:      log,
	}, nil
}

// Register creates an account and logs it in. Duplicate emails
// (case-insensitive, soft-deleted rows excluded) fail with CONFLICT; an
// unknown role name fails with BAD_REQUEST.
func (e *Engine) Register(ctx context.Context, input RegisterInput, tc token.Context) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	_, err := e.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		e.metrics.IncRegisterConflict()
		return nil, E(CodeConflict, "Email already registered")
	case !errors.Is(err, ErrNotFound):
		return nil, Wrap(CodeInternal, "Registration failed", err)
	}

	roleName := input.RoleName
	if roleName == "" {
		roleName = DefaultRole
	}
	role, err := e.roles.ByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, E(CodeBadRequest, "Invalid role")
		}
		return nil, Wrap(CodeInternal, "Registration failed", err)
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, Wrap(CodeInternal, "Registration failed", err)
	}

	user, err := e.users.Create(ctx, email, hash, role.ID, input.Name)
	if err != nil {
		return nil, Wrap(CodeInternal, "Registration failed", err)
	}

	e.metrics.IncRegisterSuccess()
	return e.issueTokens(ctx, user, tc)
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password return the same UNAUTHORIZED message so the response does
// not reveal which check failed.
func (e *Engine) Login(ctx context.Context, email, pass string, tc token.Context) (*AuthResult, error) {
	user, err := e.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metrics.IncLoginFailure()
			return nil, E(CodeUnauthorized, "Invalid email or password")
		}
		return nil, Wrap(CodeInternal, "Login failed", err)
	}
	if !password.Verify(pass, user.PasswordHash) {
		e.metrics.IncLoginFailure()
		return nil, E(CodeUnauthorized, "Invalid email or password")
	}

	e.metrics.IncLoginSuccess()
	return e.issueTokens(ctx, user, tc)
}

// Refresh rotates a refresh token: the presented token is consumed exactly
// once, the role's permission set is re-resolved by id against the current
// store state, and a fresh pair is issued. A second use of the same token
// fails UNAUTHORIZED; session-store unavailability on the consumption path
// fails INTERNAL rather than silently allowing reuse.
func (e *Engine) Refresh(ctx context.Context, rawToken string, tc token.Context) (*AuthResult, error) {
	claims, err := e.codec.Verify(rawToken)
	if err != nil {
		e.metrics.IncRefreshFailure()
		return nil, E(CodeUnauthorized, "Invalid or expired refresh token")
	}
	if claims.Type != token.TypeRefresh || claims.Subject == "" || claims.ID == "" {
		e.metrics.IncRefreshFailure()
		return nil, E(CodeUnauthorized, "Invalid refresh token")
	}

	consumed, err := e.sessions.ConsumeRefreshToken(ctx, claims.Subject, claims.ID)
	if err != nil {
		e.metrics.IncRefreshFailure()
		return nil, Wrap(CodeInternal, "Session store unavailable", err)
	}
	if !consumed {
		e.metrics.IncRefreshReuse()
		return nil, E(CodeUnauthorized, "Refresh token already used or revoked")
	}

	role, err := e.roles.ByID(ctx, claims.RoleID)
	if err != nil {
		e.metrics.IncRefreshFailure()
		if errors.Is(err, ErrNotFound) {
			return nil, E(CodeUnauthorized, "Role not found")
		}
		return nil, Wrap(CodeInternal, "Refresh failed", err)
	}

	user := &User{
		ID:          claims.Subject,
		Email:       claims.Email,
		RoleID:      claims.RoleID,
		RoleName:    role.Name,
		Permissions: role.Permissions,
	}
	e.metrics.IncRefreshSuccess()
	return e.issueTokens(ctx, user, tc)
}

// Logout revokes the presented access token until its natural expiry, capped
// by the configured blacklist ceiling. An empty token is a no-op.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := e.sessions.BlacklistAccessToken(ctx, accessToken); err != nil {
		return Wrap(CodeInternal, "Logout failed", err)
	}
	e.metrics.IncLogout()
	return nil
}

// Authenticate resolves a bearer access token to a verified [Identity].
// The blacklist lookup runs fail-open: if the session store is unreachable
// the request proceeds on signature validity alone. Signature and expiry
// verification is mandatory and never skipped.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, E(CodeUnauthorized, "Authentication required")
	}

	blacklisted, err := e.sessions.IsAccessTokenBlacklisted(ctx, accessToken)
	if err != nil {
		e.log.Warn("blacklist check failed, proceeding without revocation state", "error", err)
	} else if blacklisted {
		return nil, E(CodeUnauthorized, "Token revoked")
	}

	claims, err := e.codec.Verify(accessToken)
	if err != nil {
		return nil, E(CodeUnauthorized, "Invalid or expired token")
	}
	if claims.Type != token.TypeAccess || claims.Subject == "" {
		return nil, E(CodeUnauthorized, "Invalid token")
	}

	roleName := claims.RoleName
	if roleName == "" {
		roleName = DefaultRole
	}
	return &Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		RoleID:      claims.RoleID,
		RoleName:    roleName,
		Permissions: claims.Permissions,
	}, nil
}

// Profile returns the sanitizable account record for an authenticated user.
func (e *Engine) Profile(ctx context.Context, userID string) (*User, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, E(CodeNotFound, "User not found")
		}
		return nil, Wrap(CodeInternal, "Profile lookup failed", err)
	}
	return user, nil
}

// UpdateProfile mutates the caller's display name.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, name *string) (*User, error) {
	user, err := e.users.UpdateProfile(ctx, userID, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, E(CodeNotFound, "User not found")
		}
		return nil, Wrap(CodeInternal, "Profile update failed", err)
	}
	return user, nil
}

// ListUsers pages through non-deleted accounts, newest first.
func (e *Engine) ListUsers(ctx context.Context, page, limit int) ([]*User, int, error) {
	users, total, err := e.users.List(ctx, page, limit)
	if err != nil {
		return nil, 0, Wrap(CodeInternal, "User listing failed", err)
	}
	return users, total, nil
}

// DeleteUser soft-deletes an account. The row survives for audit; all
// subsequent lookups exclude it.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	if err := e.users.SoftDelete(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return E(CodeNotFound, "User not found")
		}
		return Wrap(CodeInternal, "User deletion failed", err)
	}
	return nil
}

// IssueOneTimeCode stores a code for an owner/usage pair with the configured
// TTL, e.g. email or phone verification.
func (e *Engine) IssueOneTimeCode(ctx context.Context, owner, usage, code string) error {
	if err := e.sessions.SetOTP(ctx, owner, usage, code); err != nil {
		return Wrap(CodeInternal, "Code issuance failed", err)
	}
	return nil
}

// RedeemOneTimeCode consumes a one-time code. Like refresh consumption this
// is atomic and fail-closed: a mismatched or already-used code fails
// UNAUTHORIZED, store unavailability fails INTERNAL.
func (e *Engine) RedeemOneTimeCode(ctx context.Context, owner, usage, code string) error {
	ok, err := e.sessions.VerifyOTP(ctx, owner, usage, code)
	if err != nil {
		return Wrap(CodeInternal, "Session store unavailable", err)
	}
	if !ok {
		return E(CodeUnauthorized, "Invalid or expired code")
	}
	return nil
}

// issueTokens signs an access+refresh pair and persists the refresh session
// state. Persistence is best-effort on this path: a store failure degrades
// server-side revocation but must not abort a successful login or register.
func (e *Engine) issueTokens(ctx context.Context, user *User, tc token.Context) (*AuthResult, error) {
	payload := token.Payload{
		Subject:     user.ID,
		Email:       user.Email,
		RoleID:      user.RoleID,
		RoleName:    user.RoleName,
		Permissions: user.Permissions,
	}

	access, err := e.codec.SignAccess(payload, tc)
	if err != nil {
		return nil, Wrap(CodeInternal, "Token issuance failed", err)
	}
	refresh, err := e.codec.SignRefresh(payload, tc)
	if err != nil {
		return nil, Wrap(CodeInternal, "Token issuance failed", err)
	}

	if err := e.sessions.SetRefreshToken(ctx, user.ID, refresh.JTI, e.codec.RefreshTTL(tc)); err != nil {
		e.log.Warn("refresh session persist failed, rotation tracking degraded",
			"user_id", user.ID, "error", err)
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresIn:    refresh.ExpiresIn,
		User:         user.View(),
	}, nil
}
