// Package settings はプロジェクト既定値とショット上書きから実効設定を解決します。
package settings

import (
	"slices"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// Effective はショットに適用される解決済みの生成パラメータです。
type Effective struct {
	AspectRatio      domain.AspectRatio
	ArtStyle         domain.ArtStyle
	ModelType        domain.ModelType
	SubjectReference string
	StyleReference   []domain.StyleReference
}

// Resolve はフィールド単位の継承を適用して実効設定を返します。
// 副作用はなく、OverrideSettings が nil の場合はすべてプロジェクト既定値になります。
//
// 列挙型のフィールドは空値を未設定として扱います。SubjectReference と StyleReference は
// ポインタが nil でない限り上書きとして扱い、空文字列や空リストもそのまま採用します。
func Resolve(shot domain.Shot, project domain.ProjectSettings) Effective {
	eff := Effective{
		AspectRatio:      project.DefaultAspectRatio,
		ArtStyle:         project.DefaultArtStyle,
		ModelType:        project.DefaultModelType,
		SubjectReference: project.DefaultSubjectReference,
		StyleReference:   cloneStyles(project.DefaultStyleReference),
	}

	o := shot.OverrideSettings
	if o == nil {
		return eff
	}

	if o.AspectRatio != nil && *o.AspectRatio != "" {
		eff.AspectRatio = *o.AspectRatio
	}
	if o.ArtStyle != nil && *o.ArtStyle != "" {
		eff.ArtStyle = *o.ArtStyle
	}
	if o.ModelType != nil && *o.ModelType != "" {
		eff.ModelType = *o.ModelType
	}
	if o.SubjectReference != nil {
		eff.SubjectReference = *o.SubjectReference
	}
	if o.StyleReference != nil {
		eff.StyleReference = cloneStyles(*o.StyleReference)
	}
	return eff
}

// SeedOverrides はプロジェクト既定値をすべて書き写した上書き設定を返します。
// ショットの上書きを有効にした直後の初期値として使います。
func SeedOverrides(project domain.ProjectSettings) *domain.ShotSettings {
	styles := cloneStyles(project.DefaultStyleReference)
	return &domain.ShotSettings{
		AspectRatio:      domain.Ptr(project.DefaultAspectRatio),
		ArtStyle:         domain.Ptr(project.DefaultArtStyle),
		ModelType:        domain.Ptr(project.DefaultModelType),
		SubjectReference: domain.Ptr(project.DefaultSubjectReference),
		StyleReference:   &styles,
	}
}

func cloneStyles(refs []domain.StyleReference) []domain.StyleReference {
	out := slices.Clone(refs)
	if out == nil {
		out = []domain.StyleReference{}
	}
	return out
}
