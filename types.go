package gatehouse

import (
	"context"
	"time"

	"github.com/gatehouse-labs/gatehouse/token"
)

// DefaultRole is assigned when registration does not name a role.
const DefaultRole = "USER"

// User is the role-annotated account record returned by [UserStore].
// PasswordHash never leaves the orchestrator; responses carry [UserView].
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         *string
	RoleID       string
	RoleName     string
	Permissions  []string
	CreatedAt    time.Time
}

// View strips credential material for client responses.
func (u *User) View() UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		RoleName:    u.RoleName,
		Permissions: u.Permissions,
		CreatedAt:   u.CreatedAt,
	}
}

// UserView is the sanitized user representation embedded in API responses.
type UserView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        *string   `json:"name"`
	RoleName    string    `json:"roleName"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// Role is a named permission bucket.
type Role struct {
	ID          string
	Name        string
	Permissions []string
}

// RegisterInput is the input for [Engine.Register]. RoleName defaults to
// [DefaultRole] when empty.
type RegisterInput struct {
	Email    string
	Password string
	Name     *string
	RoleName string
}

// AuthResult is returned by the register, login, and refresh flows.
// ExpiresIn is the configured refresh lifetime string (e.g. "7d").
type AuthResult struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    string   `json:"expiresIn"`
	User         UserView `json:"user"`
}

// UserStore abstracts the relational credential store. All reads exclude
// soft-deleted rows and return [ErrNotFound] for absent records.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, email, passwordHash, roleID string, name *string) (*User, error)
	UpdateProfile(ctx context.Context, id string, name *string) (*User, error)
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int) ([]*User, int, error)
}

// RoleStore resolves role identifiers and names to permission sets.
type RoleStore interface {
	ByID(ctx context.Context, id string) (*Role, error)
	ByName(ctx context.Context, name string) (*Role, error)
}

// SessionStore is the TTL-bearing key-value state behind refresh-token
// single-use tracking, access-token revocation, and one-time codes.
// ConsumeRefreshToken and VerifyOTP must be atomic check-and-delete:
// concurrent consumers of the same entry see exactly one success.
type SessionStore interface {
	SetRefreshToken(ctx context.Context, userID, jti string, ttl time.Duration) error
	ConsumeRefreshToken(ctx context.Context, userID, jti string) (bool, error)
	BlacklistAccessToken(ctx context.Context, accessToken string) error
	IsAccessTokenBlacklisted(ctx context.Context, accessToken string) (bool, error)
	SetOTP(ctx context.Context, owner, usage, code string) error
	VerifyOTP(ctx context.Context, owner, usage, code string) (bool, error)
}

// Codec signs and verifies access/refresh tokens with per-context expiry.
type Codec interface {
	SignAccess(p token.Payload, tc token.Context) (string, error)
	SignRefresh(p token.Payload, tc token.Context) (token.RefreshToken, error)
	Verify(raw string) (*token.Claims, error)
	RefreshTTL(tc token.Context) time.Duration
	MaxAccessTTL() time.Duration
}
