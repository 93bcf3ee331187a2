package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// verifyScript deletes the code only on an exact match, so a code is
// redeemable at most once even under concurrent attempts.
var verifyScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v == ARGV[1] then
    redis.call("DEL", KEYS[1])
    return 1
end
return 0
`)

// SetOTP stores a one-time code for an owner/usage pair, replacing any
// earlier code for the same pair.
func (s *Store) SetOTP(ctx context.Context, owner, usage, code string) error {
	if err := s.rdb.Set(ctx, s.otpKey(owner, usage), code, s.otpTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// VerifyOTP atomically compares and deletes a stored code. A mismatch does
// not consume the stored code. Errors are transport failures and must be
// treated as fail-closed by the caller.
func (s *Store) VerifyOTP(ctx context.Context, owner, usage, code string) (bool, error) {
	n, err := verifyScript.Run(ctx, s.rdb, []string{s.otpKey(owner, usage)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// GetOTP returns the pending code without consuming it, e.g. to decide
// whether a resend is needed. Absent codes return "" with no error.
func (s *Store) GetOTP(ctx context.Context, owner, usage string) (string, error) {
	v, err := s.rdb.Get(ctx, s.otpKey(owner, usage)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

// DeleteOTP discards a pending code without redeeming it.
func (s *Store) DeleteOTP(ctx context.Context, owner, usage string) error {
	if err := s.rdb.Del(ctx, s.otpKey(owner, usage)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
