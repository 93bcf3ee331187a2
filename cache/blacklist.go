package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenMeta extracts the jti and expiry from a JWT without verifying the
// signature. Blacklisting happens after the caller proved possession, and
// reading the expiry of an unverifiable token only shortens its entry.
func tokenMeta(raw string) (jti string, exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", time.Time{}, false
	}
	id, _ := claims["jti"].(string)
	if id == "" {
		return "", time.Time{}, false
	}
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	return id, exp, true
}

// BlacklistAccessToken records a token's jti as revoked until the token's
// natural expiry, capped by the configured ceiling. Tokens that cannot be
// decoded are ignored: they can never pass verification anyway.
func (s *Store) BlacklistAccessToken(ctx context.Context, accessToken string) error {
	jti, exp, ok := tokenMeta(accessToken)
	if !ok {
		return nil
	}
	ttl := s.blacklistCap
	if !exp.IsZero() {
		if remaining := time.Until(exp); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, s.blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsAccessTokenBlacklisted reports whether a token's jti is revoked.
// Undecodable tokens report false; verification will reject them.
func (s *Store) IsAccessTokenBlacklisted(ctx context.Context, accessToken string) (bool, error) {
	jti, _, ok := tokenMeta(accessToken)
	if !ok {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, s.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
