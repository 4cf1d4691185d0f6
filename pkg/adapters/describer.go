package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/prompts"
	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"
)

// Describer は参照画像の特徴をテキスト化します。
// 同じ画像への同時リクエストは 1 回の API 呼び出しにまとめ、結果はキャッシュします。
type Describer struct {
	client ContentGenerator
	model  string
	cfg    config.Config
	cache  *cache.Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewDescriber は Describer を生成します。c が nil の場合はキャッシュしません。
func NewDescriber(client ContentGenerator, cfg config.Config, c *cache.Cache, logger *slog.Logger) *Describer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Describer{
		client: client,
		model:  cfg.GeminiModel,
		cfg:    cfg,
		cache:  c,
		logger: logger.With("component", "describer"),
	}
}

// Describe は domain.ImageAnalyzer を実装します。
func (d *Describer) Describe(ctx context.Context, imageRef string, kind domain.DescribeKind) (string, error) {
	op := "describe-" + string(kind)
	src, err := imagePart(imageRef)
	if err != nil {
		return "", &domain.AnalysisError{Op: op, Err: err}
	}

	key := describeKey(kind, imageRef)
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			return v.(string), nil
		}
	}

	v, err, shared := d.group.Do(key, func() (any, error) {
		ctx, cancel := withTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()

		resp, err := d.client.GenerateContent(ctx, d.model,
			userContent(src, genai.NewPartFromText(prompts.BuildDescribePrompt(kind))),
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("画像解析 API の呼び出しに失敗しました: %w", err)
		}
		text, err := firstText(resp)
		if err != nil {
			return nil, err
		}
		if d.cache != nil {
			d.cache.Set(key, text, cache.DefaultExpiration)
		}
		return text, nil
	})
	if err != nil {
		return "", &domain.AnalysisError{Op: op, Err: err}
	}
	d.logger.DebugContext(ctx, "画像を解析しました", "kind", kind, "shared", shared)
	return v.(string), nil
}

func describeKey(kind domain.DescribeKind, imageRef string) string {
	sum := sha256.Sum256([]byte(imageRef))
	return string(kind) + ":" + hex.EncodeToString(sum[:])
}
