package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pdfmarker/pdfmarker/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds the reference API server configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	Auth      AuthConfig
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

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

// Issuer returns the realm issuer URL, or URL itself when no realm is set.
func (k KeycloakConfig) Issuer() string {
	if k.Realm == "" {
		return k.URL
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	Bucket     string
	PresignTTL time.Duration
}

type AuthConfig struct {
	// Require rejects unauthenticated comment API calls when true.
	Require bool
	// AllowInsecureTokens accepts unsigned bearer tokens; integration runs only.
	AllowInsecureTokens bool
}

// ClientConfig configures the annotation client and CLI.
type ClientConfig struct {
	APIURL   string
	Timeout  time.Duration
	AuthMode string // none | token | oauth2
	Token    string
	UserID   string
	OAuth    OAuthConfig
}

type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
	Scopes       []string
}

func loadEnv() {
	_ = godotenv.Load(".env")
	viper.AutomaticEnv()
}

// LoadConfig loads server configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	loadEnv()

	viper.SetDefault("SERVER_PORT", "5010")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "pdfmarker")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("MINIO_BUCKET", "pdfmarker")
	viper.SetDefault("MINIO_PRESIGN_MINUTES", 15)

	cfg := &Config{
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
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:      viper.GetString("KEYCLOAK_URL"),
			Realm:    viper.GetString("KEYCLOAK_REALM"),
			ClientID: viper.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret:         viper.GetString("JWT_SECRET"),
			AccessTokenTTL: time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:   viper.GetString("MINIO_ENDPOINT"),
			AccessKey:  viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey:  viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:     viper.GetBool("MINIO_USE_SSL"),
			Bucket:     viper.GetString("MINIO_BUCKET"),
			PresignTTL: time.Duration(viper.GetInt("MINIO_PRESIGN_MINUTES")) * time.Minute,
		},
		Auth: AuthConfig{
			Require:             viper.GetBool("REQUIRE_AUTH"),
			AllowInsecureTokens: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
	}

	if cfg.JWT.Secret == "" {
		logger.Warnf("JWT_SECRET is not set; locally minted tokens will be rejected")
	}
	if cfg.MongoDB.URI == "" {
		logger.Infof("MONGODB_URI is not set; using in-memory repositories")
	}

	return cfg, nil
}

// LoadClientConfig loads annotation client settings (PDFMARKER_* variables).
func LoadClientConfig() (*ClientConfig, error) {
	loadEnv()

	viper.SetDefault("PDFMARKER_API_URL", "http://localhost:5010")
	viper.SetDefault("PDFMARKER_TIMEOUT", "10s")
	viper.SetDefault("PDFMARKER_AUTH_MODE", "none")

	cfg := &ClientConfig{
		APIURL:   viper.GetString("PDFMARKER_API_URL"),
		Timeout:  viper.GetDuration("PDFMARKER_TIMEOUT"),
		AuthMode: strings.ToLower(viper.GetString("PDFMARKER_AUTH_MODE")),
		Token:    viper.GetString("PDFMARKER_TOKEN"),
		UserID:   viper.GetString("PDFMARKER_USER_ID"),
		OAuth: OAuthConfig{
			TokenURL:     viper.GetString("PDFMARKER_OAUTH_TOKEN_URL"),
			ClientID:     viper.GetString("PDFMARKER_OAUTH_CLIENT_ID"),
			ClientSecret: viper.GetString("PDFMARKER_OAUTH_CLIENT_SECRET"),
			Audience:     viper.GetString("PDFMARKER_OAUTH_AUDIENCE"),
			Scopes:       viper.GetStringSlice("PDFMARKER_OAUTH_SCOPES"),
		},
	}
	switch cfg.AuthMode {
	case "none", "token", "oauth2":
	default:
		return nil, fmt.Errorf("unknown PDFMARKER_AUTH_MODE %q", cfg.AuthMode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg, nil
}
