package gatehouse

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/gatehouse-labs/gatehouse/token"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL    string `env:"DATABASE_URL,required"`
	RedisURL       string `env:"REDIS_URL,required"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"gatehouse:"`

	JWTSecret              string `env:"JWT_SECRET,required"`
	AccessExpiresInWeb     string `env:"JWT_ACCESS_WEB_EXPIRES_IN" envDefault:"15m"`
	AccessExpiresInMobile  string `env:"JWT_ACCESS_MOBILE_EXPIRES_IN" envDefault:"10m"`
	RefreshExpiresInWeb    string `env:"JWT_REFRESH_WEB_EXPIRES_IN" envDefault:"7d"`
	RefreshExpiresInMobile string `env:"JWT_REFRESH_MOBILE_EXPIRES_IN" envDefault:"30d"`

	BlacklistCapSeconds int `env:"BLACKLIST_CAP_SECONDS" envDefault:"900"`
	OTPTTLSeconds       int `env:"OTP_TTL_SECONDS" envDefault:"300"`

	RateLimitWebMax         int `env:"RATE_LIMIT_WEB_MAX" envDefault:"100"`
	RateLimitWebWindowMS    int `env:"RATE_LIMIT_WEB_WINDOW_MS" envDefault:"60000"`
	RateLimitMobileMax      int `env:"RATE_LIMIT_MOBILE_MAX" envDefault:"200"`
	RateLimitMobileWindowMS int `env:"RATE_LIMIT_MOBILE_WINDOW_MS" envDefault:"60000"`
}

// LoadConfig reads and validates configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the invariants the rest of the system assumes: a signing
// secret long enough to resist brute force, parseable expiry strings, and a
// blacklist cap that covers the longest access lifetime.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 characters")
	}

	var maxAccess time.Duration
	for name, s := range map[string]string{
		"JWT_ACCESS_WEB_EXPIRES_IN":     c.AccessExpiresInWeb,
		"JWT_ACCESS_MOBILE_EXPIRES_IN":  c.AccessExpiresInMobile,
		"JWT_REFRESH_WEB_EXPIRES_IN":    c.RefreshExpiresInWeb,
		"JWT_REFRESH_MOBILE_EXPIRES_IN": c.RefreshExpiresInMobile,
	} {
		d, err := token.ParseExpiry(s)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		if (name == "JWT_ACCESS_WEB_EXPIRES_IN" || name == "JWT_ACCESS_MOBILE_EXPIRES_IN") && d > maxAccess {
			maxAccess = d
		}
	}

	if c.BlacklistCapSeconds <= 0 {
		return errors.New("config: BLACKLIST_CAP_SECONDS must be positive")
	}
	if c.BlacklistCap() < maxAccess {
		return errors.New("config: BLACKLIST_CAP_SECONDS must cover the longest access-token lifetime")
	}
	if c.OTPTTLSeconds <= 0 {
		return errors.New("config: OTP_TTL_SECONDS must be positive")
	}
	return nil
}

// BlacklistCap returns the revocation-entry TTL ceiling as a duration.
func (c *Config) BlacklistCap() time.Duration {
	return time.Duration(c.BlacklistCapSeconds) * time.Second
}

// OTPTTL returns the one-time-code lifetime as a duration.
func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLSeconds) * time.Second
}

// TokenConfig maps the environment surface onto the codec configuration.
func (c *Config) TokenConfig() token.Config {
	return token.Config{
		Secret:        c.JWTSecret,
		AccessWeb:     c.AccessExpiresInWeb,
		AccessMobile:  c.AccessExpiresInMobile,
		RefreshWeb:    c.RefreshExpiresInWeb,
		RefreshMobile: c.RefreshExpiresInMobile,
	}
}
