package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds configuration for the auth client and the stub backend.
type Config struct {
	API       APIConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Upstream  UpstreamConfig
}

// APIConfig describes the platform auth API the client talks to.
type APIConfig struct {
	BaseURL string
	Portal  string // admin | customer | reseller | technician
	Timeout time.Duration
}

// AuthConfig drives client-side session behaviour.
type AuthConfig struct {
	LogoutRedirect   string
	AutoRefresh      bool
	RefreshThreshold time.Duration // fire the refresh timer this long before expiry
}

// RateLimitConfig bounds repeated login attempts locally before they reach
// the server. Burst is the number of attempts allowed back-to-back; the
// bucket refills at PerMinute attempts per minute.
type RateLimitConfig struct {
	Enabled       bool
	Burst         int
	PerMinute     float64
	UseRedis      bool // stub backend: use the Redis fixed-window limiter
	RPS           float64
	WindowSeconds int
}

// StorageConfig selects where the client persists session snapshots and
// token material. Both paths are optional; empty means memory-only.
type StorageConfig struct {
	SnapshotPath string
	VaultPath    string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// UpstreamConfig points the stub backend at an external OIDC issuer for
// bearer verification. Empty issuer means tokens are verified locally.
type UpstreamConfig struct {
	Issuer   string
	ClientID string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("API_BASE_URL", "http://localhost:5002")
	viper.SetDefault("API_PORTAL", "admin")
	viper.SetDefault("API_TIMEOUT", 15)
	viper.SetDefault("AUTH_LOGOUT_REDIRECT", "/login")
	viper.SetDefault("AUTH_AUTO_REFRESH", true)
	viper.SetDefault("AUTH_REFRESH_THRESHOLD_MINUTES", 5)
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_BURST", 5)
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 1.0)
	viper.SetDefault("RATE_LIMIT_RPS", 5.0)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)

	cfg := &Config{
		API: APIConfig{
			BaseURL: viper.GetString("API_BASE_URL"),
			Portal:  viper.GetString("API_PORTAL"),
			Timeout: time.Duration(viper.GetInt("API_TIMEOUT")) * time.Second,
		},
		Auth: AuthConfig{
			LogoutRedirect:   viper.GetString("AUTH_LOGOUT_REDIRECT"),
			AutoRefresh:      viper.GetBool("AUTH_AUTO_REFRESH"),
			RefreshThreshold: time.Duration(viper.GetInt("AUTH_REFRESH_THRESHOLD_MINUTES")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			PerMinute:     viper.GetFloat64("RATE_LIMIT_PER_MINUTE"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Storage: StorageConfig{
			SnapshotPath: viper.GetString("SESSION_SNAPSHOT_PATH"),
			VaultPath:    viper.GetString("TOKEN_VAULT_PATH"),
		},
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       0,
		},
		JWT: JWTConfig{
			Secret:          viper.GetString("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		Upstream: UpstreamConfig{
			Issuer:   viper.GetString("UPSTREAM_ISSUER"),
			ClientID: viper.GetString("UPSTREAM_CLIENT_ID"),
		},
	}

	return cfg, nil
}
