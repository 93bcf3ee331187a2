// Package token signs and verifies the HS256 JWTs used for access and
// refresh credentials, with independent expiry tables for web and mobile
// clients.
package token

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context selects the expiry table for a token pair.
type Context string

const (
	Web    Context = "web"
	Mobile Context = "mobile"
)

// Token type discriminator carried in the "type" claim. Verification alone
// does not distinguish the two; callers must check Claims.Type.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrInvalid is wrapped by every Verify failure: bad signature, wrong
// algorithm, expiry, or malformed input.
var ErrInvalid = errors.New("token: invalid token")

// Payload is the identity snapshot embedded into both token types.
type Payload struct {
	Subject     string
	Email       string
	RoleID      string
	RoleName    string
	Permissions []string
}

// Claims is the wire shape of a signed token. RegisteredClaims carries the
// subject, jti, and expiry.
type Claims struct {
	Email       string   `json:"email,omitempty"`
	RoleID      string   `json:"roleId,omitempty"`
	RoleName    string   `json:"roleName,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Type        string   `json:"type"`
	jwt.RegisteredClaims
}

// RefreshToken is a signed refresh credential plus the identifiers the
// session store tracks it by.
type RefreshToken struct {
	Token     string
	JTI       string
	ExpiresIn string
}

// Config holds the signing secret and the per-context expiry strings.
// Expiry strings use a single unit suffix: "30d", "12h", "15m", "90s".
type Config struct {
	Secret        string
	AccessWeb     string
	AccessMobile  string
	RefreshWeb    string
	RefreshMobile string
}

// Codec signs and verifies tokens for one secret and expiry table.
// Safe for concurrent use.
type Codec struct {
	secret        []byte
	accessWeb     time.Duration
	accessMobile  time.Duration
	refreshWeb    time.Duration
	refreshMobile time.Duration
	refreshStrs   map[Context]string
}

// NewCodec validates the secret and expiry table. Secrets shorter than 32
// bytes are rejected outright.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token: secret must be at least 32 characters")
	}
	if cfg.AccessWeb == "" {
		cfg.AccessWeb = "15m"
	}
	if cfg.AccessMobile == "" {
		cfg.AccessMobile = "10m"
	}
	if cfg.RefreshWeb == "" {
		cfg.RefreshWeb = "7d"
	}
	if cfg.RefreshMobile == "" {
		cfg.RefreshMobile = "30d"
	}

	c := &Codec{
		secret: []byte(cfg.Secret),
		refreshStrs: map[Context]string{
			Web:    cfg.RefreshWeb,
			Mobile: cfg.RefreshMobile,
		},
	}
	var err error
	if c.accessWeb, err = ParseExpiry(cfg.AccessWeb); err != nil {
		return nil, fmt.Errorf("token: access web expiry: %w", err)
	}
	if c.accessMobile, err = ParseExpiry(cfg.AccessMobile); err != nil {
		return nil, fmt.Errorf("token: access mobile expiry: %w", err)
	}
	if c.refreshWeb, err = ParseExpiry(cfg.RefreshWeb); err != nil {
		return nil, fmt.Errorf("token: refresh web expiry: %w", err)
	}
	if c.refreshMobile, err = ParseExpiry(cfg.RefreshMobile); err != nil {
		return nil, fmt.Errorf("token: refresh mobile expiry: %w", err)
	}
	return c, nil
}

var expiryRe = regexp.MustCompile(`^(\d+)([dhms])$`)

// ParseExpiry converts an expiry string like "7d" or "15m" into a duration.
// Supported units are d, h, m, s; anything else is an error.
func ParseExpiry(s string) (time.Duration, error) {
	m := expiryRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid expiry %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid expiry %q", s)
	}
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	default:
		return time.Duration(n) * time.Second, nil
	}
}

// SignAccess issues an access token for the context's access lifetime.
func (c *Codec) SignAccess(p Payload, tc Context) (string, error) {
	ttl := c.accessWeb
	if tc == Mobile {
		ttl = c.accessMobile
	}
	raw, _, err := c.sign(p, TypeAccess, ttl)
	return raw, err
}

// SignRefresh issues a refresh token for the context's refresh lifetime and
// returns its jti so the session store can track single use.
func (c *Codec) SignRefresh(p Payload, tc Context) (RefreshToken, error) {
	ttl := c.refreshWeb
	expStr := c.refreshStrs[Web]
	if tc == Mobile {
		ttl = c.refreshMobile
		expStr = c.refreshStrs[Mobile]
	}
	raw, jti, err := c.sign(p, TypeRefresh, ttl)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: raw, JTI: jti, ExpiresIn: expStr}, nil
}

func (c *Codec) sign(p Payload, typ string, ttl time.Duration) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	claims := Claims{
		Email:       p.Email,
		RoleID:      p.RoleID,
		RoleName:    p.RoleName,
		Permissions: p.Permissions,
		Type:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("token: sign: %w", err)
	}
	return raw, jti, nil
}

// Verify checks signature, algorithm, and expiry. It does not check the
// token type; callers inspect Claims.Type for that.
func (c *Codec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return claims, nil
}

// RefreshTTL reports the refresh lifetime for a context. Unknown contexts
// fall back to the web table.
func (c *Codec) RefreshTTL(tc Context) time.Duration {
	if tc == Mobile {
		return c.refreshMobile
	}
	return c.refreshWeb
}

// MaxAccessTTL reports the longest configured access lifetime across
// contexts. The revocation blacklist cap must be at least this long.
func (c *Codec) MaxAccessTTL() time.Duration {
	if c.accessMobile > c.accessWeb {
		return c.accessMobile
	}
	return c.accessWeb
}
