package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	BucketName    string
	PresignExpiry time.Duration
}

// Platforms holds API endpoints and client behavior shared by the adapters.
type Platforms struct {
	GraphBaseURL     string
	TiktokBaseURL    string
	RequestTimeout   time.Duration
	RequestsPerSec   int
	PollInterval     time.Duration
	PollMaxAttempts  int
	PollMaxRetries   int
	TiktokPrivacy    string
	TiktokAutoMusic  bool
	TiktokPhotoCover int
}

type Scheduler struct {
	Cron            string
	BatchSize       int
	StaleClaimAfter time.Duration
	ProcessTimeout  time.Duration
	PartialStatus   bool
	RunTimeout      time.Duration
}

type Config struct {
	PostgresURI string
	RedisURI    string
	ListenAddr  string
	FrontendURL string
	SecretKey   string
	CookieName  string
	CronSecret  string
	SentryDSN   string
	Environment string
	R2          R2
	Platforms   Platforms
	Scheduler   Scheduler
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", ""),
		ListenAddr:  getEnv("LISTEN_ADDR", ":3000"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:   getEnv("SECRET_KEY", ""),
		CookieName:  getEnv("COOKIE_NAME", "postflow_token"),
		CronSecret:  getEnv("CRON_SECRET", ""),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
		Environment: getEnv("ENVIRONMENT", "development"),
		R2: R2{
			AccountID:     getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:     getEnv("R2_ACCESS_KEY", ""),
			SecretKey:     getEnv("R2_SECRET_KEY", ""),
			BucketName:    getEnv("R2_BUCKET_NAME", ""),
			PresignExpiry: getDuration("R2_PRESIGN_EXPIRY", time.Hour),
		},
		Platforms: Platforms{
			GraphBaseURL:     getEnv("GRAPH_BASE_URL", "https://graph.facebook.com/v21.0"),
			TiktokBaseURL:    getEnv("TIKTOK_BASE_URL", "https://open.tiktokapis.com"),
			RequestTimeout:   getDuration("PLATFORM_REQUEST_TIMEOUT", 30*time.Second),
			RequestsPerSec:   getInt("PLATFORM_REQUESTS_PER_SEC", 20),
			PollInterval:     getDuration("POLL_INTERVAL", 2*time.Second),
			PollMaxAttempts:  getInt("POLL_MAX_ATTEMPTS", 30),
			PollMaxRetries:   getInt("POLL_MAX_RETRIES", 2),
			TiktokPrivacy:    getEnv("TIKTOK_PRIVACY_LEVEL", "PUBLIC_TO_EVERYONE"),
			TiktokAutoMusic:  getBool("TIKTOK_AUTO_ADD_MUSIC", true),
			TiktokPhotoCover: getInt("TIKTOK_PHOTO_COVER_INDEX", 0),
		},
		Scheduler: Scheduler{
			Cron:            getEnv("SCHEDULER_CRON", "@every 1m"),
			BatchSize:       getInt("SCHEDULER_BATCH_SIZE", 10),
			StaleClaimAfter: getDuration("STALE_CLAIM_AFTER", 15*time.Minute),
			ProcessTimeout:  getDuration("POST_PROCESS_TIMEOUT", 10*time.Minute),
			PartialStatus:   getBool("PARTIAL_STATUS_ENABLED", false),
			RunTimeout:      getDuration("SCHEDULER_RUN_TIMEOUT", 5*time.Minute),
		},
	}
}

// Validate rejects settings under which the stale sweep could fail a post
// that is still being published.
func (c *Config) Validate() error {
	s := c.Scheduler
	if s.ProcessTimeout <= 0 {
		return fmt.Errorf("POST_PROCESS_TIMEOUT must be positive, got %s", s.ProcessTimeout)
	}
	if s.StaleClaimAfter > 0 && s.ProcessTimeout >= s.StaleClaimAfter {
		return fmt.Errorf("POST_PROCESS_TIMEOUT (%s) must be shorter than STALE_CLAIM_AFTER (%s)", s.ProcessTimeout, s.StaleClaimAfter)
	}
	return nil
}

// R2Enabled reports whether object storage credentials are configured.
func (c *Config) R2Enabled() bool {
	return c.R2.AccountID != "" && c.R2.AccessKey != "" && c.R2.SecretKey != "" && c.R2.BucketName != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
