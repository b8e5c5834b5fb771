package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Provider API keys
	NewsAPIKey     string
	GuardianAPIKey string
	NYTAPIKey      string

	// Provider
	ProviderTimeout   time.Duration
	ProviderMaxSize   int64
	ProviderRateLimit int // 1プロバイダーあたりの送信数/分
	ProviderRateBurst int

	// Database（空の場合はインメモリストアを使用する）
	DatabaseURL             string
	PreferenceRetentionDays int // 0以下の場合は期限切れ設定の削除を行わない

	// Rate Limit
	RateLimitPreferences int // クライアントあたりのリクエスト数/分

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// プロバイダーのAPIキーが1つも設定されていない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.NewsAPIKey = strings.TrimSpace(os.Getenv("NEWS_API_KEY"))
	cfg.GuardianAPIKey = strings.TrimSpace(os.Getenv("GUARDIAN_API_KEY"))
	cfg.NYTAPIKey = strings.TrimSpace(os.Getenv("NEW_YORK_TIMES_API_KEY"))

	if cfg.NewsAPIKey == "" && cfg.GuardianAPIKey == "" && cfg.NYTAPIKey == "" {
		return nil, fmt.Errorf("at least one provider API key must be set: %v",
			[]string{"NEWS_API_KEY", "GUARDIAN_API_KEY", "NEW_YORK_TIMES_API_KEY"})
	}

	// Optional fields with defaults
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 8*time.Second)
	cfg.ProviderMaxSize = getEnvInt64("PROVIDER_MAX_SIZE", 2097152)
	cfg.ProviderRateLimit = getEnvInt("PROVIDER_RATE_LIMIT", 60)
	cfg.ProviderRateBurst = getEnvInt("PROVIDER_RATE_BURST", 10)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.PreferenceRetentionDays = getEnvInt("PREFERENCE_RETENTION_DAYS", 180)
	cfg.RateLimitPreferences = getEnvInt("RATE_LIMIT_PREFERENCES", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// HasDatabase はPostgreSQLの接続先が設定されているかを返す。
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
