package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server            ServerConfig                     `json:"server"`
	Redis             RedisConfig                      `json:"redis"`
	Database          DatabaseConfig                   `json:"database"`
	Security          SecurityConfig                   `json:"security"`
	Logging           LoggingConfig                    `json:"logging"`
	Store             StoreConfig                      `json:"store"`
	HealthCheck       HealthCheckConfig                `json:"health_check"`
	Events            EventsConfig                     `json:"events"`
	RateLimitPolicies map[string]RateLimitPolicyConfig `json:"rate_limit_policies"`
}

type ServerConfig struct {
	Port               string   `json:"port"`
	Environment        string   `json:"environment"`
	ReadTimeoutSec     int      `json:"read_timeout_sec"`
	WriteTimeoutSec    int      `json:"write_timeout_sec"`
	ShutdownTimeoutSec int      `json:"shutdown_timeout_sec"`
	AllowedOrigins     []string `json:"allowed_origins"`
	TrustedProxies     []string `json:"trusted_proxies"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type DatabaseConfig struct {
	URL   string `json:"url"`
	Debug bool   `json:"debug"`
}

type SecurityConfig struct {
	JWTSecret            string `json:"jwt_secret"`
	JWTRefreshSecret     string `json:"jwt_refresh_secret"`
	EncryptionKey        string `json:"encryption_key"`
	APIKeySecret         string `json:"api_key_secret"`
	Issuer               string `json:"issuer"`
	Audience             string `json:"audience"`
	AccessTokenTTLMin    int    `json:"access_token_ttl_min"`
	RefreshTokenTTLHours int    `json:"refresh_token_ttl_hours"`
	CSRFTokenTTLMin      int    `json:"csrf_token_ttl_min"`
	MaxInputLength       int    `json:"max_input_length"`
	AIPromptMaxLength    int    `json:"ai_prompt_max_length"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or text
}

// StoreConfig tunes the distributed store and its in-process fallback
type StoreConfig struct {
	TimeoutMs          int `json:"timeout_ms"`
	MaxFailures        int `json:"max_failures"`
	OpenTimeoutSec     int `json:"open_timeout_sec"`
	JanitorIntervalSec int `json:"janitor_interval_sec"`
}

type HealthCheckConfig struct {
	IntervalSec      int `json:"interval_sec"`
	TimeoutSec       int `json:"timeout_sec"`
	FailureThreshold int `json:"failure_threshold"`
}

type EventsConfig struct {
	BufferSize      int `json:"buffer_size"`
	BatchSize       int `json:"batch_size"`
	FlushIntervalMs int `json:"flush_interval_ms"`
}

// RateLimitPolicyConfig overrides one named policy. Zero fields keep the default.
type RateLimitPolicyConfig struct {
	WindowMs        int64  `json:"window_ms"`
	Max             int64  `json:"max"`
	BlockDurationMs int64  `json:"block_duration_ms"`
	Message         string `json:"message"`
	StatusCode      int    `json:"status_code"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			Environment:        "development",
			ReadTimeoutSec:     15,
			WriteTimeoutSec:    15,
			ShutdownTimeoutSec: 5,
			AllowedOrigins:     []string{"*"},
		},
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    "6379",
		},
		Security: SecurityConfig{
			Issuer:               "secure-api",
			Audience:             "secure-api-clients",
			AccessTokenTTLMin:    15,
			RefreshTokenTTLHours: 24 * 7,
			CSRFTokenTTLMin:      60,
			MaxInputLength:       10000,
			AIPromptMaxLength:    2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			TimeoutMs:          200,
			MaxFailures:        3,
			OpenTimeoutSec:     30,
			JanitorIntervalSec: 60,
		},
		HealthCheck: HealthCheckConfig{
			IntervalSec:      10,
			TimeoutSec:       2,
			FailureThreshold: 3,
		},
		Events: EventsConfig{
			BufferSize:      1000,
			BatchSize:       100,
			FlushIntervalMs: 5000,
		},
	}
}

// Load reads the JSON file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Security.JWTSecret, "JWT_SECRET")
	setString(&c.Security.JWTRefreshSecret, "JWT_REFRESH_SECRET")
	setString(&c.Security.EncryptionKey, "ENCRYPTION_KEY")
	setString(&c.Security.APIKeySecret, "API_KEY_SECRET")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	if v, ok := os.LookupEnv("REDIS_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Redis.Enabled = enabled
		}
	}
	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}

	if c.IsProduction() {
		required := map[string]string{
			"JWT_SECRET":         c.Security.JWTSecret,
			"JWT_REFRESH_SECRET": c.Security.JWTRefreshSecret,
			"ENCRYPTION_KEY":     c.Security.EncryptionKey,
			"API_KEY_SECRET":     c.Security.APIKeySecret,
		}
		for name, value := range required {
			if value == "" {
				errs = append(errs, fmt.Errorf("%s is required in production", name))
			}
		}
	}

	if c.Security.JWTSecret != "" && c.Security.JWTSecret == c.Security.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}

	for name, p := range c.RateLimitPolicies {
		if p.WindowMs < 0 || p.Max < 0 || p.BlockDurationMs < 0 {
			errs = append(errs, fmt.Errorf("rate_limit_policies.%s: values must not be negative", name))
		}
		if p.StatusCode != 0 && (p.StatusCode < 400 || p.StatusCode > 599) {
			errs = append(errs, fmt.Errorf("rate_limit_policies.%s: status_code must be 4xx or 5xx", name))
		}
	}

	if c.Store.JanitorIntervalSec <= 0 {
		errs = append(errs, errors.New("store.janitor_interval_sec must be positive"))
	}
	if c.Store.TimeoutMs < 0 || c.Store.MaxFailures < 0 || c.Store.OpenTimeoutSec < 0 {
		errs = append(errs, errors.New("store: timeout_ms, max_failures and open_timeout_sec must not be negative"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or text", c.Logging.Format))
	}

	return errors.Join(errs...)
}
