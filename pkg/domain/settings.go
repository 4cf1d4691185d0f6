package domain

import "slices"

// AspectRatio は画像のアスペクト比です。
type AspectRatio string

const (
	AspectCinemaScope AspectRatio = "2.39:1"
	AspectWide        AspectRatio = "16:9"
	AspectStandard    AspectRatio = "4:3"
	AspectVertical    AspectRatio = "9:16"
	AspectSquare      AspectRatio = "1:1"
)

// ArtStyle は画風です。
type ArtStyle string

const (
	StyleCinematicRealism ArtStyle = "cinematic-realism"
	StyleConceptArt       ArtStyle = "concept-art"
	StyleAnime            ArtStyle = "anime"
	StyleSketch           ArtStyle = "sketch"
)

// ModelType は画像生成に使うモデルの種類です。
type ModelType string

const (
	ModelGemini25Flash ModelType = "gemini-2.5-flash"
	ModelGemini3Pro    ModelType = "gemini-3-pro"
)

var (
	aspectRatios = []AspectRatio{AspectCinemaScope, AspectWide, AspectStandard, AspectVertical, AspectSquare}
	artStyles    = []ArtStyle{StyleCinematicRealism, StyleConceptArt, StyleAnime, StyleSketch}
	modelTypes   = []ModelType{ModelGemini25Flash, ModelGemini3Pro}
)

func (a AspectRatio) Valid() bool { return slices.Contains(aspectRatios, a) }
func (s ArtStyle) Valid() bool    { return slices.Contains(artStyles, s) }
func (m ModelType) Valid() bool   { return slices.Contains(modelTypes, m) }

// AspectRatios はサポートされるアスペクト比の一覧を返します。
func AspectRatios() []AspectRatio { return slices.Clone(aspectRatios) }

// ArtStyles はサポートされる画風の一覧を返します。
func ArtStyles() []ArtStyle { return slices.Clone(artStyles) }

// ModelTypes はサポートされるモデルの一覧を返します。
func ModelTypes() []ModelType { return slices.Clone(modelTypes) }

// ShotSettings はショット単位の部分的な上書き設定です。
// nil のフィールドはプロジェクトの既定値を継承します。
type ShotSettings struct {
	AspectRatio      *AspectRatio      `json:"aspectRatio,omitempty" yaml:"aspectRatio,omitempty"`
	ArtStyle         *ArtStyle         `json:"artStyle,omitempty" yaml:"artStyle,omitempty"`
	ModelType        *ModelType        `json:"modelType,omitempty" yaml:"modelType,omitempty"`
	SubjectReference *string           `json:"subjectReference,omitempty" yaml:"subjectReference,omitempty"`
	StyleReference   *[]StyleReference `json:"styleReference,omitempty" yaml:"styleReference,omitempty"`
}

// Clone は上書き設定のディープコピーを返します。
func (s ShotSettings) Clone() ShotSettings {
	c := ShotSettings{}
	if s.AspectRatio != nil {
		c.AspectRatio = Ptr(*s.AspectRatio)
	}
	if s.ArtStyle != nil {
		c.ArtStyle = Ptr(*s.ArtStyle)
	}
	if s.ModelType != nil {
		c.ModelType = Ptr(*s.ModelType)
	}
	if s.SubjectReference != nil {
		c.SubjectReference = Ptr(*s.SubjectReference)
	}
	if s.StyleReference != nil {
		refs := slices.Clone(*s.StyleReference)
		if refs == nil {
			refs = []StyleReference{}
		}
		c.StyleReference = &refs
	}
	return c
}

// ProjectSettings はプロジェクト全体の既定値です。
type ProjectSettings struct {
	DefaultAspectRatio      AspectRatio          `json:"defaultAspectRatio" yaml:"defaultAspectRatio"`
	DefaultArtStyle         ArtStyle             `json:"defaultArtStyle" yaml:"defaultArtStyle"`
	DefaultModelType        ModelType            `json:"defaultModelType" yaml:"defaultModelType"`
	DefaultSubjectReference string               `json:"defaultSubjectReference" yaml:"defaultSubjectReference"`
	DefaultStyleReference   []StyleReference     `json:"defaultStyleReference" yaml:"defaultStyleReference"`
	CharacterLibrary        []CharacterReference `json:"characterLibrary" yaml:"characterLibrary"`
}

// DefaultProjectSettings は初期状態のプロジェクト設定を返します。
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		DefaultAspectRatio:    AspectWide,
		DefaultArtStyle:       StyleCinematicRealism,
		DefaultModelType:      ModelGemini25Flash,
		DefaultStyleReference: []StyleReference{},
		CharacterLibrary:      []CharacterReference{},
	}
}

// Clone はプロジェクト設定のディープコピーを返します。
func (p ProjectSettings) Clone() ProjectSettings {
	c := p
	c.DefaultStyleReference = slices.Clone(p.DefaultStyleReference)
	c.CharacterLibrary = slices.Clone(p.CharacterLibrary)
	return c
}

// Ptr は値へのポインタを返します。
func Ptr[T any](v T) *T {
	return &v
}
