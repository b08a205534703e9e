package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DefaultLocale string

	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string
	RefineModel      string
	ImageModel       string
	VideoModel       string
	GenAITimeout     time.Duration

	VideoPollInterval time.Duration
	VideoMaxPolls     int

	DatabaseURL string
	RedisURL    string
	GeoIPDBPath string

	StoragePath    string
	StorageBaseURL string

	CORSAllowedOrigins    []string
	HTTPReadTimeout       time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
	RateLimitPerMin       int
	MaxConcurrentPreviews int
	JobTTL                time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  port,
		DefaultLocale:         getEnv("DEFAULT_LOCALE", "vi"),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:         strings.TrimRight(os.Getenv("GEMINI_BASE_URL"), "/"),
		GeminiAPIVersion:      getEnv("GEMINI_API_VERSION", "v1beta"),
		RefineModel:           getEnv("REFINE_MODEL", "gemini-2.5-flash"),
		ImageModel:            getEnv("IMAGE_MODEL", "gemini-2.5-flash-image"),
		VideoModel:            getEnv("VIDEO_MODEL", "veo-3.1-fast-generate-preview"),
		GenAITimeout:          time.Second * time.Duration(getEnvInt("GENAI_TIMEOUT_SECONDS", 120)),
		VideoPollInterval:     time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 5)),
		VideoMaxPolls:         getEnvInt("VIDEO_MAX_POLLS", 120),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		GeoIPDBPath:           os.Getenv("GEOIP_DB_PATH"),
		StoragePath:           getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:        strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/media"), "/"),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxConcurrentPreviews: getEnvInt("MAX_CONCURRENT_PREVIEWS", 4),
		JobTTL:                time.Minute * time.Duration(getEnvInt("JOB_TTL_MINUTES", 60)),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.VideoMaxPolls <= 0 {
		return nil, fmt.Errorf("VIDEO_MAX_POLLS must be positive, got %d", cfg.VideoMaxPolls)
	}
	if cfg.MaxConcurrentPreviews <= 0 {
		cfg.MaxConcurrentPreviews = 1
	}
	if _, err := url.Parse(cfg.StorageBaseURL); err != nil {
		return nil, fmt.Errorf("STORAGE_BASE_URL is invalid: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
