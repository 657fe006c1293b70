// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// OIDC / JWT validation
	Authority     string // issuer URL (user pool authority)
	Audience      string // expected aud (app client id)
	JWKSURL       string // defaults to Authority + "/.well-known/jwks.json"
	JWKSPerMinute int    // JWKS fetches allowed per minute (cache hits are free)
	ClockSkew     time.Duration

	// Credential vending
	RoleArn          string
	CredDuration     time.Duration // default session duration
	CredMaxDuration  time.Duration
	SafetyMargin     time.Duration // cached credential is stale this close to expiry
	BrokerTimeout    time.Duration // per-attempt AssumeRole timeout
	BrokerMaxRetries int
	PolicyTemplates  string // optional template file overriding the embedded set

	// Data plane
	TableName   string
	DatabaseURL string
	RedisURL    string

	// Service discovery (rproxy) and user admin
	Namespace  string
	UserPoolID string

	RateLimitPerMin int // per-tenant request budget, 0 disables
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("TVM_ENV", "dev"),
		HTTPAddr:         env("TVM_HTTP_ADDR", ":3010"),
		Authority:        env("OIDC_AUTHORITY", ""),
		Audience:         env("OIDC_AUDIENCE", ""),
		JWKSURL:          env("JWKS_URL", ""),
		JWKSPerMinute:    envInt("JWKS_REQUESTS_PER_MINUTE", 5),
		ClockSkew:        envDur("CLOCK_SKEW_SEC", 60) * time.Second,
		RoleArn:          env("IAM_ROLE_ARN", ""),
		CredDuration:     envDur("CRED_DURATION_SEC", 900) * time.Second,
		CredMaxDuration:  envDur("CRED_MAX_DURATION_SEC", 3600) * time.Second,
		SafetyMargin:     envDur("CRED_SAFETY_MARGIN_SEC", 120) * time.Second,
		BrokerTimeout:    envDur("BROKER_TIMEOUT_SEC", 10) * time.Second,
		BrokerMaxRetries: envInt("BROKER_MAX_RETRIES", 3),
		PolicyTemplates:  env("POLICY_TEMPLATES_FILE", ""),
		TableName:        env("TABLE_NAME", ""),
		DatabaseURL:      env("DATABASE_URL", ""),
		RedisURL:         env("REDIS_URL", ""),
		Namespace:        env("NAMESPACE", ""),
		UserPoolID:       env("COGNITO_USER_POOL_ID", ""),
		RateLimitPerMin:  envInt("RATE_LIMIT_PER_MIN", 0),
	}
	if cfg.JWKSURL == "" && cfg.Authority != "" {
		cfg.JWKSURL = strings.TrimRight(cfg.Authority, "/") + "/.well-known/jwks.json"
	}
	if cfg.RoleArn == "" {
		log.Println("[WARN] IAM_ROLE_ARN not set; credential vending will fail until configured")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
