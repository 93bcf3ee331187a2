package cache

import (
	"context"
	"fmt"
	"time"
)

// AcquireLock takes a named lock via SET NX. It returns false when the lock
// is already held. A ttl of zero uses the configured default so a crashed
// holder cannot wedge the lock forever.
func (s *Store) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.lockTTL
	}
	ok, err := s.rdb.SetNX(ctx, s.lockKey(name), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// ReleaseLock frees a named lock. Releasing a lock that already expired is
// not an error.
func (s *Store) ReleaseLock(ctx context.Context, name string) error {
	if err := s.rdb.Del(ctx, s.lockKey(name)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
