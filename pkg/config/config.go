package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Mailer    MailerConfig
	Portal    PortalConfig
	Letters   LettersConfig
	Reminders RemindersConfig
	Dashboard DashboardConfig
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
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig configures the S3 object storage gateway.
type StorageConfig struct {
	Region           string
	Bucket           string
	PublicBaseURL    string
	UploadURLTTL     time.Duration
	ViewURLTTL       time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// MailerConfig selects and configures the outbound email sender.
type MailerConfig struct {
	Provider    string
	Region      string
	FromAddress string
	FromName    string
	Workers     int
	MaxRetries  int
	RetryDelay  time.Duration
}

// PortalConfig governs recipient-facing secure token access.
type PortalConfig struct {
	TokenTTL time.Duration
	LinkBase string
}

// LettersConfig bounds letter submission behaviour.
type LettersConfig struct {
	VersionRetries int
}

// RemindersConfig drives the periodic reminder scan.
type RemindersConfig struct {
	Enabled          bool
	CronSpec         string
	DefaultIntervals []int
	ScanBatchSize    int
}

// DashboardConfig tunes the cached student summary endpoint.
type DashboardConfig struct {
	CacheTTL time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	allowedMIMEs := splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES"))
	if len(allowedMIMEs) == 0 {
		allowedMIMEs = []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}
	}
	cfg.Storage = StorageConfig{
		Region:           v.GetString("STORAGE_REGION"),
		Bucket:           v.GetString("STORAGE_BUCKET"),
		PublicBaseURL:    v.GetString("STORAGE_PUBLIC_BASE_URL"),
		UploadURLTTL:     parseDuration(v.GetString("STORAGE_UPLOAD_URL_TTL"), 15*time.Minute),
		ViewURLTTL:       parseDuration(v.GetString("STORAGE_VIEW_URL_TTL"), 15*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     allowedMIMEs,
	}

	cfg.Mailer = MailerConfig{
		Provider:    v.GetString("MAILER_PROVIDER"),
		Region:      v.GetString("MAILER_REGION"),
		FromAddress: v.GetString("MAILER_FROM_ADDRESS"),
		FromName:    v.GetString("MAILER_FROM_NAME"),
		Workers:     v.GetInt("MAILER_WORKERS"),
		MaxRetries:  v.GetInt("MAILER_MAX_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("MAILER_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Portal = PortalConfig{
		TokenTTL: parseDuration(v.GetString("PORTAL_TOKEN_TTL"), 30*24*time.Hour),
		LinkBase: v.GetString("PORTAL_LINK_BASE"),
	}

	versionRetries := v.GetInt("LETTER_VERSION_RETRIES")
	if versionRetries <= 0 {
		versionRetries = 3
	}
	cfg.Letters = LettersConfig{VersionRetries: versionRetries}

	intervals := splitInts(v.GetString("REMINDER_DEFAULT_INTERVALS"))
	if len(intervals) == 0 {
		intervals = []int{14, 7, 3, 1}
	}
	cfg.Reminders = RemindersConfig{
		Enabled:          v.GetBool("ENABLE_REMINDERS"),
		CronSpec:         v.GetString("REMINDER_CRON_SPEC"),
		DefaultIntervals: intervals,
		ScanBatchSize:    v.GetInt("REMINDER_SCAN_BATCH_SIZE"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "reco_letter")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_BUCKET", "reco-letters")
	v.SetDefault("STORAGE_UPLOAD_URL_TTL", "15m")
	v.SetDefault("STORAGE_VIEW_URL_TTL", "15m")

	v.SetDefault("MAILER_PROVIDER", "log")
	v.SetDefault("MAILER_REGION", "us-east-1")
	v.SetDefault("MAILER_FROM_ADDRESS", "no-reply@localhost")
	v.SetDefault("MAILER_FROM_NAME", "Recommendation Requests")
	v.SetDefault("MAILER_WORKERS", 2)
	v.SetDefault("MAILER_MAX_RETRIES", 3)

	v.SetDefault("PORTAL_TOKEN_TTL", "720h")
	v.SetDefault("PORTAL_LINK_BASE", "http://localhost:8080/portal")

	v.SetDefault("ENABLE_REMINDERS", true)
	v.SetDefault("REMINDER_CRON_SPEC", "@every 15m")
	v.SetDefault("REMINDER_DEFAULT_INTERVALS", "14,7,3,1")
	v.SetDefault("REMINDER_SCAN_BATCH_SIZE", 200)

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitInts(raw string) []int {
	parts := splitAndTrim(raw)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}
