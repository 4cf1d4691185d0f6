package settings

import (
	"fmt"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// CanAdd は参照ライブラリにもう 1 件追加できるかを返します。
func CanAdd(current int) bool {
	return current < domain.MaxReferenceImages
}

// ClampReferences は上限を超えた分を切り捨てたスライスと、切り捨てた件数を返します。
func ClampReferences[T any](refs []T) ([]T, int) {
	if len(refs) <= domain.MaxReferenceImages {
		return refs, 0
	}
	dropped := len(refs) - domain.MaxReferenceImages
	return refs[:domain.MaxReferenceImages:domain.MaxReferenceImages], dropped
}

// ValidateProject はプロジェクト設定の列挙値を検証します。
func ValidateProject(p domain.ProjectSettings) error {
	if !p.DefaultAspectRatio.Valid() {
		return fmt.Errorf("%w: aspectRatio=%q", domain.ErrInvalidSettings, p.DefaultAspectRatio)
	}
	if !p.DefaultArtStyle.Valid() {
		return fmt.Errorf("%w: artStyle=%q", domain.ErrInvalidSettings, p.DefaultArtStyle)
	}
	if !p.DefaultModelType.Valid() {
		return fmt.Errorf("%w: modelType=%q", domain.ErrInvalidSettings, p.DefaultModelType)
	}
	return ValidateStyleReferences(p.DefaultStyleReference)
}

// ValidateOverrides は設定済みの上書きフィールドのみを検証します。空の列挙値は未設定扱いなので許容します。
func ValidateOverrides(o *domain.ShotSettings) error {
	if o == nil {
		return nil
	}
	if o.AspectRatio != nil && *o.AspectRatio != "" && !o.AspectRatio.Valid() {
		return fmt.Errorf("%w: aspectRatio=%q", domain.ErrInvalidSettings, *o.AspectRatio)
	}
	if o.ArtStyle != nil && *o.ArtStyle != "" && !o.ArtStyle.Valid() {
		return fmt.Errorf("%w: artStyle=%q", domain.ErrInvalidSettings, *o.ArtStyle)
	}
	if o.ModelType != nil && *o.ModelType != "" && !o.ModelType.Valid() {
		return fmt.Errorf("%w: modelType=%q", domain.ErrInvalidSettings, *o.ModelType)
	}
	if o.StyleReference != nil {
		return ValidateStyleReferences(*o.StyleReference)
	}
	return nil
}

// ValidateImageRef は参照画像がモデルに直接渡せる形式かを検証します。
// 画像はインラインで送るため、http(s) などの URL は受け付けません。
func ValidateImageRef(ref string) error {
	if !asset.IsDataURL(strings.TrimSpace(ref)) {
		return fmt.Errorf("%w: %.40q", domain.ErrUnsupportedImage, ref)
	}
	return nil
}

// ValidateStyleReferences はスタイル参照の画像をすべて検証します。
func ValidateStyleReferences(refs []domain.StyleReference) error {
	for _, r := range refs {
		if err := ValidateImageRef(r.ImageURL); err != nil {
			return fmt.Errorf("スタイル参照 %s: %w", r.ID, err)
		}
	}
	return nil
}
