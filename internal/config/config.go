package config

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-utils/envutil"
)

// アプリケーション固有のデフォルト値
const (
	DefaultListenAddr = ":8080"
	DefaultLogLevel   = "INFO"
)

// Config はアプリケーション全体の環境設定を保持する構造体です。
type Config struct {
	config.Config

	ProjectFile string
	ListenAddr  string
	LogLevel    slog.Level
	LogFile     string
}

// LoadConfig は環境変数から設定を読み込み、構造体を返します。
// 数値や期間として解釈できない値はデフォルト値に戻します。
func LoadConfig() Config {
	base := config.DefaultConfig()

	apiKey := envutil.GetEnv("GEMINI_API_KEY", "")
	if apiKey == "" {
		apiKey = envutil.GetEnv("API_KEY", "")
	}
	base.GeminiAPIKey = apiKey
	base.GeminiModel = envutil.GetEnv("GEMINI_MODEL", config.DefaultGeminiModel)
	base.ImageModels[domain.ModelGemini25Flash] = envutil.GetEnv("FLASH_IMAGE_MODEL", config.DefaultFlashImageModel)
	base.ImageModels[domain.ModelGemini3Pro] = envutil.GetEnv("PRO_IMAGE_MODEL", config.DefaultProImageModel)
	base.StyleSuffix = envutil.GetEnv("IMAGE_PROMPT_SUFFIX", "")

	base.RateInterval = envDuration("GENERATION_RATE_INTERVAL", config.DefaultRateInterval)
	base.RateBurst = envInt("GENERATION_RATE_BURST", config.DefaultRateBurst)
	base.MaxConcurrency = envInt("GENERATION_MAX_CONCURRENCY", 0)
	base.BatchSize = envInt("GENERATION_BATCH_SIZE", config.DefaultBatchSize)
	if base.BatchSize > config.MaxBatchSize {
		slog.Warn("生成枚数が上限を超えているため切り詰めます", "key", "GENERATION_BATCH_SIZE", "value", base.BatchSize, "max", config.MaxBatchSize)
		base.BatchSize = config.MaxBatchSize
	}
	base.EpisodeParallels = envInt("EPISODE_PARALLELS", config.DefaultEpisodeParallels)
	base.RequestTimeout = envDuration("REQUEST_TIMEOUT", config.DefaultRequestTimeout)
	base.CacheTTL = envDuration("CACHE_TTL", config.DefaultCacheTTL)

	return Config{
		Config:      base,
		ProjectFile: envutil.GetEnv("STORYBOARD_PROJECT", asset.DefaultProjectFile),
		ListenAddr:  envutil.GetEnv("STORYBOARD_ADDR", DefaultListenAddr),
		LogLevel:    ParseLogLevel(envutil.GetEnv("STORYBOARD_LOG_LEVEL", DefaultLogLevel)),
		LogFile:     envutil.GetEnv("STORYBOARD_LOG_FILE", ""),
	}
}

// ParseLogLevel はログレベル名を slog.Level に変換します。不明な値は INFO です。
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envInt(key string, def int) int {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		slog.Warn("環境変数の値が不正なためデフォルト値を使用します", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		slog.Warn("環境変数の値が不正なためデフォルト値を使用します", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}
