package prompts

import "github.com/shouni/go-storyboard-kit/pkg/domain"

// ScriptPrompt は脚本解析プロンプトを構築する契約です。
type ScriptPrompt interface {
	// Build は、指定されたモードとデータに基づいてプロンプト文字列を生成します。
	Build(mode string, data TemplateData) (string, error)
}

// ImagePrompt は画像生成プロンプトを構築する契約です。
type ImagePrompt interface {
	// BuildRenderPrompt は、ユーザープロンプトとシステムプロンプトを返します。
	BuildRenderPrompt(req domain.RenderRequest) (userPrompt string, systemPrompt string)
}
