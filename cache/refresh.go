package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript deletes the refresh entry only if it is still live, so of
// any number of concurrent consumers exactly one observes 1.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == "1" then
    redis.call("DEL", KEYS[1])
    return 1
end
return 0
`)

// SetRefreshToken records a refresh token as live for its lifetime. The
// entry is keyed by user and jti so a user's sessions can be enumerated
// and revoked together.
func (s *Store) SetRefreshToken(ctx context.Context, userID, jti string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.refreshKey(userID, jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ConsumeRefreshToken atomically checks and deletes a refresh entry.
// It returns false for tokens that were never stored, already consumed,
// or expired. Errors are transport failures and must be treated as
// fail-closed by the caller.
func (s *Store) ConsumeRefreshToken(ctx context.Context, userID, jti string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{s.refreshKey(userID, jti)}).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// DeleteRefreshToken removes a refresh entry without the consume semantics,
// e.g. when revoking a single session.
func (s *Store) DeleteRefreshToken(ctx context.Context, userID, jti string) error {
	if err := s.rdb.Del(ctx, s.refreshKey(userID, jti)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllRefreshTokens removes every live refresh entry for a user,
// ending all of their sessions at once.
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	var cursor uint64
	pattern := s.refreshKey(userID, "*")
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
