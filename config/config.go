package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig  // primary store: tags, meetings, recordings (MySQL)
	Courses  CoursesDBConfig // secondary store: rooms, courses, attachments (PostgreSQL)
	Redis    RedisConfig
	R2       R2Config
	Folders  FolderConfig
	Zoom     ZoomConfig
	Probe    ProbeConfig
	Locale   LocaleConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	APIPrefix          string
}

// DatabaseConfig holds MySQL connection settings for the primary store.
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	AutoMigrate bool
}

// CoursesDBConfig holds PostgreSQL connection settings for the course/room store.
type CoursesDBConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. Empty Addr disables distributed locks.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// R2Config holds Cloudflare R2 (S3-compatible) settings.
type R2Config struct {
	Endpoint      string
	AccessKeyID   string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	Region        string
}

// FolderConfig holds the object-store key conventions.
type FolderConfig struct {
	Media        string // live-module videos
	ReportsWrite string // reconciliation reports are written and listed here
	ReportsRead  string // reconciliation reports are downloaded from here
}

// ZoomConfig holds Zoom API, webhook and Meeting SDK credentials.
type ZoomConfig struct {
	AccountID     string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	SDKKey        string
	SDKSecret     string
	APIURL        string
	AuthURL       string
}

// ProbeConfig holds ffprobe settings.
type ProbeConfig struct {
	FFprobePath string
	Timeout     time.Duration
}

// LocaleConfig holds the fixed civil time zone used for date ranges and scheduling.
type LocaleConfig struct {
	UTCOffsetHours int
}

// Location returns the fixed zone for the configured offset (UTC-5 by default).
func (c LocaleConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.UTCOffsetHours), c.UTCOffsetHours*3600)
}

// DSN returns the go-sql-driver/mysql connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// DSN returns the PostgreSQL connection string.
// If CoursesDBConfig.URL is set (DB2_URL env), it is used as-is; otherwise built from components.
func (c CoursesDBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "3000"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			APIPrefix:          getEnv("API_PREFIX", "/api"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "3306"),
			User:        getEnv("DB_USER", "root"),
			Password:    getEnv("DB_PASSWORD", ""),
			DBName:      getEnv("DB_NAME", "zoom"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Courses: CoursesDBConfig{
			URL:      getEnv("DB2_URL", ""),
			Host:     getEnv("DB2_HOST", "localhost"),
			Port:     getEnv("DB2_PORT", "5432"),
			User:     getEnv("DB2_USER", "postgres"),
			Password: getEnv("DB2_PASSWORD", "postgres"),
			DBName:   getEnv("DB2_NAME", "cursos"),
			SSLMode:  getEnv("DB2_SSLMODE", "require"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  time.Duration(getEnvInt("LOCK_TTL_SEC", 120)) * time.Second,
		},
		R2: R2Config{
			Endpoint:      getEnv("R2_ENDPOINT_URL", ""),
			AccessKeyID:   getEnv("R2_ACCESS_KEY", ""),
			SecretKey:     getEnv("R2_SECRET_KEY", ""),
			Bucket:        getEnv("R2_BUCKET_NAME", ""),
			PublicBaseURL: strings.TrimSuffix(getEnv("R2_PUBLIC_BASE_URL", ""), "/"),
			Region:        getEnv("R2_REGION", "auto"),
		},
		Folders: FolderConfig{
			Media:        strings.Trim(getEnv("MEDIA_FOLDER", "Multimedia/Video/Cursos/ModulosVivo"), "/"),
			ReportsWrite: strings.Trim(getEnv("REPORTS_WRITE_PREFIX", "reportes"), "/"),
			ReportsRead:  strings.Trim(getEnv("REPORTS_READ_PREFIX", "ReporteVideosVivo"), "/"),
		},
		Zoom: ZoomConfig{
			AccountID:     getEnv("ZOOM_ACCOUNT_ID", ""),
			ClientID:      getEnv("ZOOM_CLIENT_ID", ""),
			ClientSecret:  getEnv("ZOOM_CLIENT_SECRET", ""),
			WebhookSecret: getEnv("ZOOM_WEBHOOK_SECRET", ""),
			SDKKey:        getEnv("ZOOM_SDK_KEY", ""),
			SDKSecret:     getEnv("ZOOM_SDK_SECRET", ""),
			APIURL:        getEnv("ZOOM_API_URL", ""),
			AuthURL:       getEnv("ZOOM_AUTH_URL", ""),
		},
		Probe: ProbeConfig{
			FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
			Timeout:     time.Duration(getEnvInt("PROBE_TIMEOUT_SEC", 30)) * time.Second,
		},
		Locale: LocaleConfig{
			UTCOffsetHours: getEnvInt("LOCAL_UTC_OFFSET_HOURS", -5),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.R2.Endpoint == "" {
		missing = append(missing, "R2_ENDPOINT_URL")
	}
	if c.R2.AccessKeyID == "" {
		missing = append(missing, "R2_ACCESS_KEY")
	}
	if c.R2.SecretKey == "" {
		missing = append(missing, "R2_SECRET_KEY")
	}
	if c.R2.Bucket == "" {
		missing = append(missing, "R2_BUCKET_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete Cloudflare R2 configuration, missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
