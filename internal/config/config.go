package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration sourced from an optional YAML file and
// env vars. Env vars win.
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	DBMaxConns  int32

	JWTSecret        string
	JWTRefreshSecret string
	JWTIssuer        string
	JWTTTL           time.Duration
	JWTRefreshTTL    time.Duration

	BcryptCost int

	CORSOrigins     []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	TrustProxy      bool

	LogLevel  string
	LogFormat string
}

func defaults() Config {
	return Config{
		Env:             "development",
		Port:            "5000",
		DBMaxConns:      20,
		JWTIssuer:       "pos-backend",
		JWTTTL:          24 * time.Hour,
		JWTRefreshTTL:   7 * 24 * time.Hour,
		BcryptCost:      10,
		CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		RateLimitWindow: 15 * time.Minute,
		RateLimitMax:    100,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL (or DB_HOST/DB_NAME/DB_USER) is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTRefreshSecret == "" {
		return errors.New("JWT_REFRESH_SECRET is required")
	}
	if c.JWTSecret == c.JWTRefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWTTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_ROUNDS must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 {
		return errors.New("rate limit window and max requests must be positive")
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

type fileConfig struct {
	Env      string `yaml:"env"`
	Port     string `yaml:"port"`
	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`
	JWT struct {
		Secret           string `yaml:"secret"`
		RefreshSecret    string `yaml:"refresh_secret"`
		Issuer           string `yaml:"issuer"`
		ExpiresIn        string `yaml:"expires_in"`
		RefreshExpiresIn string `yaml:"refresh_expires_in"`
	} `yaml:"jwt"`
	Bcrypt struct {
		Rounds int `yaml:"rounds"`
	} `yaml:"bcrypt"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate_limit"`
	TrustProxy *bool `yaml:"trust_proxy"`
	Log        struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.Env, fc.Env)
	setString(&cfg.Port, fc.Port)
	setString(&cfg.DatabaseURL, fc.Database.URL)
	if fc.Database.MaxConns > 0 {
		cfg.DBMaxConns = fc.Database.MaxConns
	}
	setString(&cfg.JWTSecret, fc.JWT.Secret)
	setString(&cfg.JWTRefreshSecret, fc.JWT.RefreshSecret)
	setString(&cfg.JWTIssuer, fc.JWT.Issuer)
	if err := setDuration(&cfg.JWTTTL, "jwt.expires_in", fc.JWT.ExpiresIn); err != nil {
		return err
	}
	if err := setDuration(&cfg.JWTRefreshTTL, "jwt.refresh_expires_in", fc.JWT.RefreshExpiresIn); err != nil {
		return err
	}
	if fc.Bcrypt.Rounds != 0 {
		cfg.BcryptCost = fc.Bcrypt.Rounds
	}
	if len(fc.CORS.AllowedOrigins) > 0 {
		cfg.CORSOrigins = fc.CORS.AllowedOrigins
	}
	if err := setDuration(&cfg.RateLimitWindow, "rate_limit.window", fc.RateLimit.Window); err != nil {
		return err
	}
	if fc.RateLimit.MaxRequests != 0 {
		cfg.RateLimitMax = fc.RateLimit.MaxRequests
	}
	if fc.TrustProxy != nil {
		cfg.TrustProxy = *fc.TrustProxy
	}
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Env, os.Getenv("APP_ENV"))
	setString(&cfg.Port, os.Getenv("PORT"))

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.DatabaseURL = dsn
	} else if dsn := dsnFromParts(); dsn != "" {
		cfg.DatabaseURL = dsn
	}
	if v := strings.TrimSpace(os.Getenv("DB_MAX_CONNS")); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid DB_MAX_CONNS value %q", v)
		}
		cfg.DBMaxConns = int32(n)
	}

	setString(&cfg.JWTSecret, os.Getenv("JWT_SECRET"))
	setString(&cfg.JWTRefreshSecret, os.Getenv("JWT_REFRESH_SECRET"))
	setString(&cfg.JWTIssuer, os.Getenv("JWT_ISSUER"))
	if err := setDuration(&cfg.JWTTTL, "JWT_EXPIRES_IN", os.Getenv("JWT_EXPIRES_IN")); err != nil {
		return err
	}
	if err := setDuration(&cfg.JWTRefreshTTL, "JWT_REFRESH_EXPIRES_IN", os.Getenv("JWT_REFRESH_EXPIRES_IN")); err != nil {
		return err
	}

	if v := strings.TrimSpace(os.Getenv("BCRYPT_ROUNDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_ROUNDS value %q", v)
		}
		cfg.BcryptCost = n
	}

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORSOrigins = parseCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_MS")); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid RATE_LIMIT_WINDOW_MS value %q", v)
		}
		cfg.RateLimitWindow = time.Duration(ms) * time.Millisecond
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid RATE_LIMIT_MAX_REQUESTS value %q", v)
		}
		cfg.RateLimitMax = n
	}
	if v := strings.TrimSpace(os.Getenv("TRUST_PROXY")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY value %q", v)
		}
		cfg.TrustProxy = b
	}

	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.LogFormat, os.Getenv("LOG_FORMAT"))
	return nil
}

// ParseDuration accepts Go durations ("24h", "90m"), a day suffix ("7d") or a
// bare number of seconds.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(value)
}

func dsnFromParts() string {
	host := strings.TrimSpace(os.Getenv("DB_HOST"))
	name := strings.TrimSpace(os.Getenv("DB_NAME"))
	user := strings.TrimSpace(os.Getenv("DB_USER"))
	if host == "" || name == "" || user == "" {
		return ""
	}
	port := fallback(os.Getenv("DB_PORT"), "5432")
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, os.Getenv("DB_PASSWORD")),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + name,
	}
	return u.String()
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	*dst = d
	return nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
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
	return out
}
