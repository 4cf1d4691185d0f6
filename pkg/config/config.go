package config

import (
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// デフォルト値の定義
const (
	DefaultGeminiModel      = "gemini-2.5-flash"
	DefaultFlashImageModel  = "gemini-2.5-flash-image"
	DefaultProImageModel    = "gemini-3-pro-image-preview"
	DefaultRateInterval     = 2 * time.Second
	DefaultRateBurst        = 4
	DefaultBatchSize        = 4
	DefaultRequestTimeout   = 2 * time.Minute
	DefaultCacheTTL         = 30 * time.Minute
	DefaultCacheCleanup     = time.Hour
	DefaultTextTemperature  = float32(0.2)
	DefaultEpisodeParallels = 2

	// MaxBatchSize は 1 バッチで要求できる生成枚数の上限です。
	MaxBatchSize = 16
)

// Config は Go Storyboard Kit の各コンポーネントを動作させるための基本設定です。
type Config struct {
	// --- AI Model Settings ---
	GeminiModel string                      // 脚本解析・画像解析用
	ImageModels map[domain.ModelType]string // ModelType -> API モデル名

	// --- Google AI (Gemini API) Settings ---
	GeminiAPIKey string

	// --- Generation Settings ---
	StyleSuffix      string // 全ショット共通の追加修飾語
	RateInterval     time.Duration
	RateBurst        int
	MaxConcurrency   int // 0 はバッチ内の全試行を同時に実行
	BatchSize        int // 一括生成時の枚数
	EpisodeParallels int // エピソード一括生成で同時に処理するショット数

	// --- Timeout & Cache ---
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		GeminiModel: DefaultGeminiModel,
		ImageModels: map[domain.ModelType]string{
			domain.ModelGemini25Flash: DefaultFlashImageModel,
			domain.ModelGemini3Pro:    DefaultProImageModel,
		},
		RateInterval:     DefaultRateInterval,
		RateBurst:        DefaultRateBurst,
		BatchSize:        DefaultBatchSize,
		EpisodeParallels: DefaultEpisodeParallels,
		RequestTimeout:   DefaultRequestTimeout,
		CacheTTL:         DefaultCacheTTL,
	}
}

// ImageModel は ModelType に対応する API モデル名を返します。未登録の場合は高速モデルです。
func (c Config) ImageModel(m domain.ModelType) string {
	if name, ok := c.ImageModels[m]; ok && name != "" {
		return name
	}
	return DefaultFlashImageModel
}
