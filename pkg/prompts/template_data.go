package prompts

import (
	_ "embed"
)

const (
	ModeStoryboard = "storyboard"
)

// TemplateData は脚本解析プロンプトのテンプレートに渡すデータ構造です。
type TemplateData struct {
	InputText string
}

var (
	//go:embed storyboard.md
	StoryboardPrompt string
)

// allTemplates はモードとテンプレート文字列を紐づけるマップです。
var allTemplates = map[string]string{
	ModeStoryboard: StoryboardPrompt,
}
