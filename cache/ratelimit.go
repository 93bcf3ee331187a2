package cache

import (
	"context"
	"fmt"
	"time"
)

// IncrRateLimit counts a hit against a fixed window and returns the running
// total. The window TTL is set when the counter is created, so the first hit
// opens the window and later hits ride it out. Callers compare the count to
// their limit and should treat errors as fail-open.
func (s *Store) IncrRateLimit(ctx context.Context, bucket, subject string, window time.Duration) (int64, error) {
	key := s.rateKey(bucket, subject)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return n, nil
}
