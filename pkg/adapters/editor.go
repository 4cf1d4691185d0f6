package adapters

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/prompts"
	"google.golang.org/genai"
)

// Editor は既存のショット画像を指示に従って描き直します。
type Editor struct {
	client ContentGenerator
	cfg    config.Config
	logger *slog.Logger
}

// NewEditor は Editor を生成します。
func NewEditor(client ContentGenerator, cfg config.Config, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{client: client, cfg: cfg, logger: logger.With("component", "editor")}
}

// Edit は domain.ImageEditor を実装します。編集には常に高速モデルを使います。
func (e *Editor) Edit(ctx context.Context, imageRef, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", &domain.EditError{Err: domain.ErrEmptyInstruction}
	}
	if strings.TrimSpace(imageRef) == "" {
		return "", &domain.EditError{Err: domain.ErrMissingImage}
	}

	src, err := imagePart(imageRef)
	if err != nil {
		return "", &domain.EditError{Err: err}
	}

	ctx, cancel := withTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	model := e.cfg.ImageModel(domain.ModelGemini25Flash)
	resp, err := e.client.GenerateContent(ctx, model,
		userContent(src, genai.NewPartFromText(prompts.BuildEditPrompt(instruction))),
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE"}},
	)
	if err != nil {
		return "", &domain.EditError{Err: err}
	}

	img, err := firstImage(resp)
	if err != nil {
		return "", &domain.EditError{Err: err}
	}
	e.logger.DebugContext(ctx, "画像を編集しました", "model", model, "bytes", len(img.Data))
	return asset.EncodeImage(img), nil
}
