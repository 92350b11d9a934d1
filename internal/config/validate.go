package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWT.PasswordResetExpiry <= 0 {
		errs = append(errs, "PASSWORD_RESET_EXPIRY must be positive")
	}

	// AI quota
	if c.AIQuota.MaxUsage < 1 {
		errs = append(errs, fmt.Sprintf("AI_MAX_USAGE_QUOTA must be at least 1, got %d", c.AIQuota.MaxUsage))
	}
	if c.AIQuota.RangeDays <= 0 {
		errs = append(errs, fmt.Sprintf("AI_QUOTA_TIME_RANGE_DAYS must be positive, got %d", c.AIQuota.RangeDays))
	}
	if c.AIQuota.Backend != QuotaBackendPostgres && c.AIQuota.Backend != QuotaBackendRedis {
		errs = append(errs, fmt.Sprintf("AI_QUOTA_BACKEND must be %q or %q, got %q",
			QuotaBackendPostgres, QuotaBackendRedis, c.AIQuota.Backend))
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SMTP_PORT must be 1–65535, got %d", c.SMTP.Port))
	}

	// SMTP: warn only, password reset mail will fail to send
	if c.SMTP.Server == "" || c.SMTP.Sender == "" {
		slog.Warn("SMTP_SERVER or EMAIL_SENDER is empty, password reset emails cannot be delivered")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
