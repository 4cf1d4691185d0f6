package adapters

import (
	"context"

	"google.golang.org/genai"
)

// ContentGenerator は genai.Models.GenerateContent と同じ形の呼び出し口です。
// 本番では (*genai.Client).Models を渡し、テストでは差し替えます。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewContentGenerator は Gemini API バックエンドの genai クライアントを生成します。
func NewContentGenerator(ctx context.Context, apiKey string) (ContentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}
