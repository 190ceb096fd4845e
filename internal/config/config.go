package config

import (
	"strconv"
	"time"

	"github.com/quorumhq/quorum/internal/utils"
)

// Config is assembled from environment variables at startup. A .env file is
// loaded first when present (see cmd/server).
type Config struct {
	Addr       string
	SQLitePath string
	JWTSecret  string
	ExportSalt string

	// TestDomainSuffix marks accounts that restricted mode denies.
	TestDomainSuffix string

	// Passcode request quotas (fixed window).
	CodeEmailLimit  int
	CodeEmailWindow time.Duration
	CodeIPLimit     int
	CodeIPWindow    time.Duration

	// RedisAddr, when set, switches the rate limiter to a shared Redis
	// counter for multi-instance deployments.
	RedisAddr string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func FromEnv() Config {
	return Config{
		Addr:             utils.SafeEnv("QUORUM_ADDR", ":8080"),
		SQLitePath:       utils.SafeEnv("QUORUM_SQLITE_PATH", "data/quorum.db"),
		JWTSecret:        utils.SafeEnv("QUORUM_JWT_SECRET", ""),
		ExportSalt:       utils.SafeEnv("QUORUM_EXPORT_SALT", "quorum-export"),
		TestDomainSuffix: utils.SafeEnv("QUORUM_TEST_DOMAIN_SUFFIX", "@test.quorum.local"),
		CodeEmailLimit:   envInt("QUORUM_CODE_EMAIL_LIMIT", 3),
		CodeEmailWindow:  envDuration("QUORUM_CODE_EMAIL_WINDOW", 10*time.Minute),
		CodeIPLimit:      envInt("QUORUM_CODE_IP_LIMIT", 10),
		CodeIPWindow:     envDuration("QUORUM_CODE_IP_WINDOW", time.Minute),
		RedisAddr:        utils.SafeEnv("QUORUM_REDIS_ADDR", ""),
		SMTPHost:         utils.SafeEnv("QUORUM_SMTP_HOST", ""),
		SMTPPort:         utils.SafeEnv("QUORUM_SMTP_PORT", "587"),
		SMTPUsername:     utils.SafeEnv("QUORUM_SMTP_USERNAME", ""),
		SMTPPassword:     utils.SafeEnv("QUORUM_SMTP_PASSWORD", ""),
		SMTPFrom:         utils.SafeEnv("QUORUM_SMTP_FROM", "surveys@quorum.local"),
	}
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(utils.SafeEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(utils.SafeEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return fallback
}
