package adapters

import (
	"context"
	"fmt"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// TextAdapter は gemini.GenerativeModel を runner.TextGenerator として使うためのアダプターです。
type TextAdapter struct {
	client gemini.GenerativeModel
}

// NewTextAdapter は TextAdapter を生成します。
func NewTextAdapter(client gemini.GenerativeModel) *TextAdapter {
	return &TextAdapter{client: client}
}

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string, temperature float32) (gemini.GenerativeModel, error) {
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(temperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// GenerateText はプロンプトを送信し、応答テキストを返します。
func (a *TextAdapter) GenerateText(ctx context.Context, prompt, model string) (string, error) {
	resp, err := a.client.GenerateContent(ctx, prompt, model)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Text == "" {
		return "", errNoText
	}
	return resp.Text, nil
}
