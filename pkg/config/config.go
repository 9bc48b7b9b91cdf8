package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	NotifyDriverMemory = "memory"
	NotifyDriverAsynq  = "asynq"
)

type Config struct {
	Env       string
	APIPrefix string

	Ports       PortsConfig
	AuthDB      DatabaseConfig
	DocumentDB  DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Uploads     UploadsConfig
	Cache       CacheConfig
	Notify      NotifyConfig
	Mail        MailConfig
	Upstreams   UpstreamConfig
	RateLimit   RateLimitConfig
	Credentials CredentialConfig
}

// PortsConfig holds the listen port of each binary.
type PortsConfig struct {
	Auth     int
	Document int
	Gateway  int
	Worker   int
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig controls where document binaries live and what is accepted.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	ContentLinkTTL   time.Duration
}

// CacheConfig toggles the published-document cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// NotifyConfig selects the outbound notification queue.
type NotifyConfig struct {
	Driver      string
	Workers     int
	MaxRetries  int
	RetryDelay  time.Duration
	Concurrency int
}

// MailConfig configures outgoing email. An empty SMTPHost logs mails instead of sending.
type MailConfig struct {
	From          string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	PublicBaseURL string
}

// UpstreamConfig points the gateway and worker at the other services.
type UpstreamConfig struct {
	AuthURL       string
	DocumentURL   string
	Timeout       time.Duration
	InternalToken string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// CredentialConfig governs one-time token lifetimes.
type CredentialConfig struct {
	PasswordResetTTL time.Duration
	BcryptCost       int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Ports = PortsConfig{
		Auth:     v.GetInt("AUTH_PORT"),
		Document: v.GetInt("DOCUMENT_PORT"),
		Gateway:  v.GetInt("GATEWAY_PORT"),
		Worker:   v.GetInt("WORKER_PORT"),
	}

	cfg.AuthDB = loadDatabase(v, "AUTH_DB")
	cfg.DocumentDB = loadDatabase(v, "DOCUMENT_DB")

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 10 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_DIR"),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		ContentLinkTTL:   parseDuration(v.GetString("CONTENT_LINK_TTL"), 15*time.Minute),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_DOCUMENT_CACHE"),
		TTL:     parseDuration(v.GetString("DOCUMENT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Notify = NotifyConfig{
		Driver:      strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		Workers:     v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:  v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
		Concurrency: v.GetInt("NOTIFY_CONCURRENCY"),
	}

	cfg.Mail = MailConfig{
		From:          v.GetString("MAIL_FROM"),
		SMTPHost:      v.GetString("SMTP_HOST"),
		SMTPPort:      v.GetInt("SMTP_PORT"),
		SMTPUser:      v.GetString("SMTP_USER"),
		SMTPPassword:  v.GetString("SMTP_PASSWORD"),
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
	}

	cfg.Upstreams = UpstreamConfig{
		AuthURL:       strings.TrimRight(v.GetString("AUTH_SERVICE_URL"), "/"),
		DocumentURL:   strings.TrimRight(v.GetString("DOCUMENT_SERVICE_URL"), "/"),
		Timeout:       parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 5*time.Second),
		InternalToken: v.GetString("INTERNAL_SERVICE_TOKEN"),
	}

	cfg.RateLimit = RateLimitConfig{
		Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
		Window:   parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
	}

	cfg.Credentials = CredentialConfig{
		PasswordResetTTL: parseDuration(v.GetString("PASSWORD_RESET_TTL"), time.Hour),
		BcryptCost:       v.GetInt("BCRYPT_COST"),
	}

	return cfg, nil
}

func loadDatabase(v *viper.Viper, prefix string) DatabaseConfig {
	return DatabaseConfig{
		Host:         v.GetString(prefix + "_HOST"),
		Port:         v.GetInt(prefix + "_PORT"),
		User:         v.GetString(prefix + "_USER"),
		Password:     v.GetString(prefix + "_PASSWORD"),
		Name:         v.GetString(prefix + "_NAME"),
		SSLMode:      v.GetString(prefix + "_SSL_MODE"),
		MaxOpenConns: v.GetInt(prefix + "_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt(prefix + "_MAX_IDLE_CONNS"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("AUTH_PORT", 3003)
	v.SetDefault("DOCUMENT_PORT", 3004)
	v.SetDefault("GATEWAY_PORT", 3000)
	v.SetDefault("WORKER_PORT", 3005)

	for prefix, name := range map[string]string{"AUTH_DB": "policy_auth", "DOCUMENT_DB": "policy_documents"} {
		v.SetDefault(prefix+"_HOST", "localhost")
		v.SetDefault(prefix+"_PORT", 5432)
		v.SetDefault(prefix+"_USER", "postgres")
		v.SetDefault(prefix+"_PASSWORD", "postgres")
		v.SetDefault(prefix+"_NAME", name)
		v.SetDefault(prefix+"_SSL_MODE", "disable")
		v.SetDefault(prefix+"_MAX_OPEN_CONNS", 10)
		v.SetDefault(prefix+"_MAX_IDLE_CONNS", 5)
	}

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("JWT_ISSUER", "policy-docs-auth")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/plain,text/markdown")

	v.SetDefault("CONTENT_LINK_TTL", "15m")

	v.SetDefault("ENABLE_DOCUMENT_CACHE", false)
	v.SetDefault("DOCUMENT_CACHE_TTL", "5m")

	v.SetDefault("NOTIFY_DRIVER", NotifyDriverMemory)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")
	v.SetDefault("NOTIFY_CONCURRENCY", 5)

	v.SetDefault("MAIL_FROM", "no-reply@policy-docs.local")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3001")

	v.SetDefault("AUTH_SERVICE_URL", "http://localhost:3003")
	v.SetDefault("DOCUMENT_SERVICE_URL", "http://localhost:3004")
	v.SetDefault("UPSTREAM_TIMEOUT", "5s")
	v.SetDefault("INTERNAL_SERVICE_TOKEN", "dev_internal_token")

	v.SetDefault("RATE_LIMIT_REQUESTS", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	v.SetDefault("PASSWORD_RESET_TTL", "1h")
	v.SetDefault("BCRYPT_COST", 10)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
