package domain

import "context"

// RenderRequest は解決済みの画像生成パラメータです。
type RenderRequest struct {
	Prompt           string
	Style            ArtStyle
	AspectRatio      AspectRatio
	Model            ModelType
	SubjectReference string
	StyleReferences  []StyleReference
}

// DescribeKind は画像解析の対象です。
type DescribeKind string

const (
	DescribeSubject DescribeKind = "subject"
	DescribeStyle   DescribeKind = "style"
)

// ScriptAnalyzer は脚本テキストをショットと登場人物に分解します。
// 空入力および上流の失敗は *AnalysisError を返します。
type ScriptAnalyzer interface {
	Analyze(ctx context.Context, script string) (Analysis, error)
}

// ImageRenderer は解決済みのプロンプトから画像を 1 枚生成し、画像参照 (data URL 等) を返します。
// 失敗はすべて *RenderError です。
type ImageRenderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// ImageEditor は既存の画像を指示に従って編集します。失敗は *EditError です。
type ImageEditor interface {
	Edit(ctx context.Context, imageRef, instruction string) (string, error)
}

// ImageAnalyzer は画像の特徴をテキストで説明します。失敗は *AnalysisError です。
type ImageAnalyzer interface {
	Describe(ctx context.Context, imageRef string, kind DescribeKind) (string, error)
}
