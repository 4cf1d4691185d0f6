package adapters

import (
	"context"
	"log/slog"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/prompts"
	"google.golang.org/genai"
)

// Renderer は Gemini の画像モデルで 1 枚の画像を生成し、data URL で返します。
type Renderer struct {
	client  ContentGenerator
	cfg     config.Config
	prompts prompts.ImagePrompt
	logger  *slog.Logger
}

// NewRenderer は Renderer を生成します。
func NewRenderer(client ContentGenerator, cfg config.Config, pb prompts.ImagePrompt, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{client: client, cfg: cfg, prompts: pb, logger: logger.With("component", "renderer")}
}

// Render は domain.ImageRenderer を実装します。
func (r *Renderer) Render(ctx context.Context, req domain.RenderRequest) (string, error) {
	model := r.cfg.ImageModel(req.Model)
	userPrompt, systemPrompt := r.prompts.BuildRenderPrompt(req)

	parts := []*genai.Part{genai.NewPartFromText(userPrompt)}
	for _, ref := range req.StyleReferences {
		p, err := imagePart(ref.ImageURL)
		if err != nil {
			r.logger.WarnContext(ctx, "スタイル参照画像をスキップします", "id", ref.ID, "error", err)
			continue
		}
		parts = append(parts, p)
	}

	ctx, cancel := withTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.GenerateContent(ctx, model, userContent(parts...), &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseModalities: []string{"IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: prompts.APIAspectRatio(req.AspectRatio)},
	})
	if err != nil {
		return "", &domain.RenderError{Model: model, Err: err}
	}

	img, err := firstImage(resp)
	if err != nil {
		return "", &domain.RenderError{Model: model, Err: err}
	}

	r.logger.DebugContext(ctx, "画像を生成しました",
		"model", model,
		"bytes", len(img.Data),
		"duration", time.Since(start).Round(time.Millisecond))
	return asset.EncodeImage(img), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

