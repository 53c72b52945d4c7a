package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	GeoIPDBPath      string
	CatalogPath      string
	ExportPath       string
	CORSOrigins      []string
	GeminiAPIKey     string
	GeminiBaseURL    string
	TextModel        string
	ImageModel       string
	TTSModel         string
	VideoModel       string
	LiveModel        string
	TTSVoice         string
	VideoPollEvery   time.Duration
	VideoPollMax     int
	AdminEmail       string
	FreeCredits      int
	JWTSecret        string
	SessionTTL       time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		CatalogPath:      os.Getenv("CATALOG_PATH"),
		ExportPath:       getEnv("EXPORT_PATH", "./exports"),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		TextModel:        getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		ImageModel:       getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		TTSModel:         getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		VideoModel:       getEnv("GEMINI_VIDEO_MODEL", "veo-3.1-fast-generate-preview"),
		LiveModel:        getEnv("GEMINI_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		TTSVoice:         getEnv("TTS_VOICE", "Kore"),
		VideoPollEvery:   time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 10)),
		VideoPollMax:     getEnvInt("VIDEO_POLL_ATTEMPTS", 60),
		AdminEmail:       strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		FreeCredits:      getEnvInt("FREE_CREDITS", 3),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SessionTTL:       time.Hour * time.Duration(getEnvInt("SESSION_TTL_HOURS", 168)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 900)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.VideoPollMax <= 0 {
		return nil, fmt.Errorf("VIDEO_POLL_ATTEMPTS must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if cfg.VideoPollEvery <= 0 {
		return nil, fmt.Errorf("VIDEO_POLL_INTERVAL_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
