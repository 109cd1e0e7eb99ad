package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// MinJWTSecretLength is the minimum accepted length of JWT_SECRET in bytes.
const MinJWTSecretLength = 32

var knownWeakSecrets = []string{
	"change-me-to-a-long-random-secret",
	"your-secret-key-change-in-production",
}

type Config struct {
	ServerPort     int
	Env            string
	LogLevel       string
	AllowedOrigin  string
	PublicBaseURL  string
	TrustedProxies []string
	Database       DatabaseConfig
	Auth           AuthConfig
	RateLimits     RateLimitConfig
	Upload         UploadConfig
	Storage        StorageConfig
	Messaging      MessagingConfig
	Redis          RedisConfig
	Seed           SeedConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	UseSSL          bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	CookieSecure    bool
	MaxFailedLogins int
	LockoutDuration time.Duration
}

// Window is a fixed-window rate limit: at most Limit hits per Window.
type Window struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Login        Window
	Register     Window
	Contact      Window
	Consultation Window
	Upload       Window
}

type UploadConfig struct {
	MaxBytes int64
	// BaseURL is prepended to object keys to build public URLs.
	BaseURL string
}

type StorageConfig struct {
	// Backend is one of "local", "minio" or "gcs".
	Backend string
	Local   LocalStorageConfig
	Minio   MinioConfig
	GCS     GCSConfig
}

type LocalStorageConfig struct {
	Dir string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	Location        string
	CredentialsFile string
}

type MessagingConfig struct {
	// Backend is one of "none", "rabbitmq" or "pubsub".
	Backend     string
	LeadChannel string
	RabbitMQ    RabbitMQConfig
	PubSub      PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func LoadConfig() Config {
	if normalizeEnv(os.Getenv("ENV")) == EnvDevelopment {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "siteapi"),
		Password:        getEnv("DB_PASSWORD", "password"),
		DBName:          getEnv("DB_NAME", "siteapi_db"),
		UseSSL:          getEnvBool("DB_SSL", false),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		RetryAttempts:   getEnvInt("DB_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:  getEnvDuration("DB_RETRY_BASE_DELAY", 100*time.Millisecond),
	}

	env := normalizeEnv(getEnv("ENV", EnvDevelopment))

	authConfig := AuthConfig{
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:        getEnvDuration("JWT_TTL", 7*24*time.Hour),
		CookieSecure:    getEnvBool("COOKIE_SECURE", env == EnvProduction),
		MaxFailedLogins: getEnvInt("AUTH_MAX_FAILED_LOGINS", 5),
		LockoutDuration: getEnvDuration("AUTH_LOCKOUT_DURATION", 15*time.Minute),
	}

	rateLimits := RateLimitConfig{
		Login:        getEnvWindow("RATE_LIMIT_LOGIN", Window{Limit: 5, Window: 15 * time.Minute}),
		Register:     getEnvWindow("RATE_LIMIT_REGISTER", Window{Limit: 3, Window: time.Hour}),
		Contact:      getEnvWindow("RATE_LIMIT_CONTACT", Window{Limit: 5, Window: time.Hour}),
		Consultation: getEnvWindow("RATE_LIMIT_CONSULTATION", Window{Limit: 3, Window: time.Hour}),
		Upload:       getEnvWindow("RATE_LIMIT_UPLOAD", Window{Limit: 20, Window: time.Hour}),
	}

	publicBaseURL := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	return Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8080),
		Env:            env,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", ""),
		PublicBaseURL:  publicBaseURL,
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		Database:       dbConfig,
		Auth:           authConfig,
		RateLimits:     rateLimits,
		Upload: UploadConfig{
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5<<20)),
			BaseURL:  strings.TrimRight(getEnv("UPLOAD_BASE_URL", publicBaseURL), "/"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			Local: LocalStorageConfig{
				Dir: getEnv("STORAGE_LOCAL_DIR", "./public"),
			},
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "site-uploads"),
				Region:    getEnv("MINIO_REGION", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				Location:        getEnv("GCS_LOCATION", "US"),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		Messaging: MessagingConfig{
			Backend:     strings.ToLower(getEnv("MQ_BACKEND", "none")),
			LeadChannel: getEnv("MQ_LEAD_CHANNEL", "site.leads"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "siteapi:"),
		},
		Seed: SeedConfig{
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
			AdminName:     getEnv("SEED_ADMIN_NAME", "Administrator"),
		},
	}
}

// IsDevelopment reports whether the server runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env != EnvProduction
}

// Validate checks settings the server cannot start without.
func (c Config) Validate() error {
	secret := c.Auth.JWTSecret
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes long, got %d", MinJWTSecretLength, len(secret))
	}
	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return errors.New("JWT_SECRET is a known placeholder value and must be replaced")
		}
	}
	if c.Auth.MaxFailedLogins < 1 {
		return errors.New("AUTH_MAX_FAILED_LOGINS must be positive")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "local", "minio", "gcs":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.Messaging.Backend {
	case "none", "rabbitmq", "pubsub":
	default:
		return fmt.Errorf("unknown MQ_BACKEND %q", c.Messaging.Backend)
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies, the peers whose forwarding
// headers are believed. A bare address is a single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// getEnvWindow parses "limit/duration", e.g. "5/15m".
func getEnvWindow(key string, defaultValue Window) Window {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	limitStr, windowStr, ok := strings.Cut(strings.TrimSpace(valueStr), "/")
	if !ok {
		return defaultValue
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		return defaultValue
	}
	window, err := time.ParseDuration(windowStr)
	if err != nil || window <= 0 {
		return defaultValue
	}
	return Window{Limit: limit, Window: window}
}
