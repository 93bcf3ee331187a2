// Package cache implements the Redis-backed session state: refresh-token
// single-use tracking, access-token revocation, one-time codes, distributed
// locks, and fixed-window rate limiting.
//
// Failure policy differs per operation and is deliberate:
//
//   - Consume (refresh tokens, one-time codes) is fail-closed. Errors
//     propagate so an unreachable store can never be mistaken for a valid
//     token.
//   - Blacklist reads and rate-limit counters are left to the caller to
//     treat as fail-open; this package only reports the error.
//   - Writes on the issuance path (SetRefreshToken) report errors for the
//     caller to log and continue.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every Redis transport failure so callers can
// errors.Is against a single sentinel.
var ErrUnavailable = errors.New("cache: store unavailable")

// Config tunes key layout and TTLs.
type Config struct {
	// Prefix namespaces every key, e.g. "gatehouse:".
	Prefix string
	// BlacklistCap bounds revocation-entry TTLs regardless of remaining
	// token lifetime.
	BlacklistCap time.Duration
	// OTPTTL is the lifetime of one-time codes.
	OTPTTL time.Duration
	// LockTTL is the default distributed-lock expiry.
	LockTTL time.Duration
}

// Store wraps a Redis client with the gatehouse key layout. Safe for
// concurrent use.
type Store struct {
	rdb          redis.UniversalClient
	prefix       string
	blacklistCap time.Duration
	otpTTL       time.Duration
	lockTTL      time.Duration
}

// New builds a Store. Zero-valued config fields get defaults: a 15-minute
// blacklist cap, 5-minute codes, 10-second locks.
func New(rdb redis.UniversalClient, cfg Config) *Store {
	if cfg.BlacklistCap <= 0 {
		cfg.BlacklistCap = 15 * time.Minute
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	return &Store{
		rdb:          rdb,
		prefix:       cfg.Prefix,
		blacklistCap: cfg.BlacklistCap,
		otpTTL:       cfg.OTPTTL,
		lockTTL:      cfg.LockTTL,
	}
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) refreshKey(userID, jti string) string {
	return s.prefix + "refresh:" + userID + ":" + jti
}

func (s *Store) blacklistKey(jti string) string {
	return s.prefix + "blacklist:" + jti
}

func (s *Store) otpKey(owner, usage string) string {
	return s.prefix + "otp:" + usage + ":" + owner
}

func (s *Store) lockKey(name string) string {
	return s.prefix + "lock:" + name
}

func (s *Store) rateKey(bucket, subject string) string {
	return s.prefix + "rate:" + bucket + ":" + subject
}
