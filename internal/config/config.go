package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration sourced from env vars. It is built once at
// startup and passed by value; nothing reads the environment after Load.
type Config struct {
	Port        string
	DatabaseURL string
	DBMaxConns  int32
	DBTimeout   time.Duration

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration
	// TokenRevocation makes logout store the token id so it is rejected until expiry.
	TokenRevocation bool

	ResetTokenTTL        time.Duration
	ResetRequestInterval time.Duration
	ContactInterval      time.Duration
	BcryptCost           int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	// TrustedProxies lists the peers whose X-Forwarded-For / X-Real-IP headers are believed.
	TrustedProxies []netip.Prefix

	CORSOrigins []string
	FrontendURL string
	AppName     string
	AdminEmail  string

	SMTP SMTPConfig

	LogLevel  slog.Level
	LogFormat string
}

// SMTPConfig describes the outbound mail relay. An empty Host disables delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:        fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(positiveInt("DB_MAX_CONNS", 10)),
		DBTimeout:   time.Duration(positiveInt("DB_TIMEOUT_SECONDS", 5)) * time.Second,

		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:       fallback(os.Getenv("JWT_ISSUER"), "istc-backend"),
		JWTTTL:          time.Duration(positiveInt("JWT_TTL_MINUTES", 180)) * time.Minute,
		TokenRevocation: boolean("TOKEN_REVOCATION_ENABLED", false),

		ResetTokenTTL:        time.Duration(positiveInt("RESET_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		ResetRequestInterval: time.Duration(positiveInt("RESET_REQUEST_INTERVAL_MINUTES", 5)) * time.Minute,
		ContactInterval:      time.Duration(positiveInt("CONTACT_INTERVAL_MINUTES", 5)) * time.Minute,
		BcryptCost:           positiveInt("BCRYPT_COST", 10),

		RateLimitRequests: positiveInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(positiveInt("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,

		CORSOrigins: parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		FrontendURL: strings.TrimRight(fallback(os.Getenv("FRONTEND_URL"), "http://localhost:3000"), "/"),
		AppName:     fallback(os.Getenv("APP_NAME"), "ISTC"),
		AdminEmail:  strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),

		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
			Port:     positiveInt("SMTP_PORT", 587),
			Username: strings.TrimSpace(os.Getenv("SMTP_USER")),
			Password: os.Getenv("SMTP_PASS"),
			Timeout:  time.Duration(positiveInt("MAIL_TIMEOUT_SECONDS", 10)) * time.Second,
		},

		LogFormat: strings.ToLower(fallback(os.Getenv("LOG_FORMAT"), "text")),
	}
	cfg.SMTP.From = fallback(os.Getenv("SMTP_FROM"), fmt.Sprintf("%s <%s>", cfg.AppName, cfg.SMTP.Username))

	if err := cfg.LogLevel.UnmarshalText([]byte(fallback(os.Getenv("LOG_LEVEL"), "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	proxies, err := parsePrefixes(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return Config{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n > 0 {
		return n
	}
	return def
}

func boolean(key string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return b
	}
	return def
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// parsePrefixes accepts a comma separated list of CIDRs or bare addresses.
func parsePrefixes(input string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
