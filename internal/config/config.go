package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment keys
const (
	KeyBotToken       = "BOT_TOKEN"
	KeyCacheChannel   = "CACHE_CHANNEL"
	KeyVIPChannel     = "VIP_CHANNEL"
	KeyDownloadDir    = "DOWNLOAD_DIR"
	KeyDatabasePath   = "DATABASE_PATH"
	KeyRedisAddr      = "REDIS_ADDR"
	KeyRedisPassword  = "REDIS_PASSWORD"
	KeyYtdlpPath      = "YTDLP_PATH"
	KeyFFmpegPath     = "FFMPEG_PATH"
	KeyRateLimit      = "RATE_LIMIT"
	KeyVIPRateLimit   = "VIP_RATE_LIMIT"
	KeyMaxPerUser     = "MAX_DOWNLOADS_PER_USER"
	KeyMaxDurationSec = "MAX_DURATION_SECONDS"
	KeyFilebinURL     = "FILEBIN_URL"
	KeyFilebinCID     = "FILEBIN_CLIENT_ID"
	KeyAdminID        = "ADMIN_ID"
)

// Default values
const (
	DefaultDownloadDir    = "downloads"
	DefaultDatabasePath   = "tubebeam.db"
	DefaultMaxPerUser     = 1
	DefaultMaxDurationSec = 900 // 15 minutes, checked before admission
)

// Config holds all runtime settings
type Config struct {
	BotToken     string
	CacheChannel int64 // channel where delivered audio is cached
	VIPChannel   int64 // membership here grants the elevated tier

	DownloadDir  string
	DatabasePath string

	RedisAddr     string
	RedisPassword string

	YtdlpPath    string
	FFmpegPath   string
	RateLimit    string
	VIPRateLimit string

	MaxPerUser     int
	MaxDurationSec int

	FilebinURL      string
	FilebinClientID string

	AdminID int64 // user allowed to run admin commands, 0 disables them
}

// Load reads settings from the environment. A missing .env file is fine;
// a missing bot token is not.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:        os.Getenv(KeyBotToken),
		CacheChannel:    envInt64(KeyCacheChannel, 0),
		VIPChannel:      envInt64(KeyVIPChannel, 0),
		DownloadDir:     envString(KeyDownloadDir, DefaultDownloadDir),
		DatabasePath:    envString(KeyDatabasePath, DefaultDatabasePath),
		RedisAddr:       os.Getenv(KeyRedisAddr),
		RedisPassword:   os.Getenv(KeyRedisPassword),
		YtdlpPath:       os.Getenv(KeyYtdlpPath),
		FFmpegPath:      os.Getenv(KeyFFmpegPath),
		RateLimit:       os.Getenv(KeyRateLimit),
		VIPRateLimit:    os.Getenv(KeyVIPRateLimit),
		MaxPerUser:      envInt(KeyMaxPerUser, DefaultMaxPerUser),
		MaxDurationSec:  envInt(KeyMaxDurationSec, DefaultMaxDurationSec),
		FilebinURL:      os.Getenv(KeyFilebinURL),
		FilebinClientID: os.Getenv(KeyFilebinCID),
		AdminID:         envInt64(KeyAdminID, 0),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("%s is required", KeyBotToken)
	}
	if cfg.CacheChannel == 0 {
		return nil, fmt.Errorf("%s is required", KeyCacheChannel)
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
