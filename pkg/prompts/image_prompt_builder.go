package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// SystemInstruction は画像生成時のシステムプロンプトです。
const SystemInstruction = "You are a professional storyboard artist. Create a single high-quality cinematic frame that follows the shot description exactly."

var styleSuffixes = map[domain.ArtStyle]string{
	domain.StyleCinematicRealism: "cinematic film still, photorealistic, 8k, highly detailed, dramatic lighting, movie scene, depth of field",
	domain.StyleConceptArt:       "digital concept art, atmospheric, painterly style, artstation, vibrant colors, fantasy art style",
	domain.StyleAnime:            "anime style, makoto shinkai style, cel shaded, vibrant, high quality 2d animation",
	domain.StyleSketch:           "black and white storyboard sketch, rough pencil drawing, gestural lines, minimal shading, hand drawn",
}

// StyleSuffix は画風に対応するプロンプトの修飾語を返します。未知の画風は cinematic-realism 扱いです。
func StyleSuffix(style domain.ArtStyle) string {
	if s, ok := styleSuffixes[style]; ok {
		return s
	}
	return styleSuffixes[domain.StyleCinematicRealism]
}

// APIAspectRatio は画像 API が受け付けるアスペクト比に変換します。
// 2.39:1 は API 側に存在しないため 16:9 で生成します。
func APIAspectRatio(ar domain.AspectRatio) string {
	switch ar {
	case domain.AspectCinemaScope:
		return string(domain.AspectWide)
	case "":
		return string(domain.AspectWide)
	default:
		return string(ar)
	}
}

// ImagePromptBuilder は解決済みの設定から画像生成用のプロンプトを組み立てます。
type ImagePromptBuilder struct {
	extraSuffix string
}

// NewImagePromptBuilder は新しい ImagePromptBuilder を生成します。
// extraSuffix は全ショット共通で末尾に付与する修飾語です (空でも構いません)。
func NewImagePromptBuilder(extraSuffix string) *ImagePromptBuilder {
	return &ImagePromptBuilder{extraSuffix: strings.TrimSpace(extraSuffix)}
}

// BuildRenderPrompt はユーザープロンプトとシステムプロンプトを返します。
func (pb *ImagePromptBuilder) BuildRenderPrompt(req domain.RenderRequest) (string, string) {
	style := StyleSuffix(req.Style)
	if pb.extraSuffix != "" {
		style = style + ", " + pb.extraSuffix
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate a high quality image. %s, %s.", strings.TrimSpace(req.Prompt), style))

	if ref := strings.TrimSpace(req.SubjectReference); ref != "" {
		sb.WriteString("\n\nSubject reference: ")
		sb.WriteString(ref)
	}
	if len(req.StyleReferences) > 0 {
		tags := make([]string, 0, len(req.StyleReferences))
		for _, s := range req.StyleReferences {
			if t := strings.TrimSpace(s.Tag); t != "" {
				tags = append(tags, t)
			}
		}
		sb.WriteString("\n\nMatch the visual style of the attached reference images")
		if len(tags) > 0 {
			sb.WriteString(" (")
			sb.WriteString(strings.Join(tags, ", "))
			sb.WriteString(")")
		}
		sb.WriteString(".")
	}
	return sb.String(), SystemInstruction
}

// BuildEditPrompt は画像編集用のプロンプトを返します。
func BuildEditPrompt(instruction string) string {
	return fmt.Sprintf("Edit this image. %s. Maintain the style of a storyboard. Return the result as an image.", strings.TrimSpace(instruction))
}

// BuildDescribePrompt は画像解析用のプロンプトを返します。
func BuildDescribePrompt(kind domain.DescribeKind) string {
	if kind == domain.DescribeStyle {
		return "Describe the visual style of this image in one short line of comma-separated keywords (medium, palette, lighting, linework). Return only the keywords."
	}
	return "Describe the visual traits of the character in this image for consistent re-drawing: face, hair, build, clothing, colors and distinctive accessories. Answer in one concise paragraph without mentioning the background."
}
