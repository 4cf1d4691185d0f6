package domain

import (
	"slices"
	"time"
)

// Episode は 1 本の脚本と、そこから解析されたショット群を保持します。
type Episode struct {
	ID            string           `json:"id" yaml:"id"`
	Title         string           `json:"title" yaml:"title"`
	ScriptContent string           `json:"scriptContent" yaml:"scriptContent"`
	Shots         []Shot           `json:"shots" yaml:"shots"`
	Characters    []CharacterDraft `json:"characters" yaml:"characters"`
	LastAnalyzed  *time.Time       `json:"lastAnalyzed,omitempty" yaml:"lastAnalyzed,omitempty"`
}

// Shot はストーリーボードの 1 コマです。
type Shot struct {
	ID                string        `json:"id" yaml:"id"`
	SceneHeader       string        `json:"sceneHeader" yaml:"sceneHeader"`
	ActionDescription string        `json:"actionDescription" yaml:"actionDescription"`
	CameraAngle       string        `json:"cameraAngle" yaml:"cameraAngle"`
	VisualPrompt      string        `json:"visualPrompt" yaml:"visualPrompt"`
	ImageURL          string        `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	Variations        []string      `json:"variations,omitempty" yaml:"variations,omitempty"`
	Progress          int           `json:"progress" yaml:"progress"`
	IsGenerating      bool          `json:"isGenerating" yaml:"isGenerating"`
	OverrideSettings  *ShotSettings `json:"overrideSettings,omitempty" yaml:"overrideSettings,omitempty"`

	// GenerationEpoch は生成バッチの世代番号です。古いバッチの書き込みを破棄するために使います。
	GenerationEpoch uint64 `json:"generationEpoch" yaml:"generationEpoch"`
}

// ShotDraft は Script Analyzer が返す ID 未採番のショットです。
type ShotDraft struct {
	SceneHeader       string `json:"sceneHeader" yaml:"sceneHeader"`
	ActionDescription string `json:"actionDescription" yaml:"actionDescription"`
	CameraAngle       string `json:"cameraAngle" yaml:"cameraAngle"`
	VisualPrompt      string `json:"visualPrompt" yaml:"visualPrompt"`
}

// CharacterDraft は脚本から抽出された登場人物です。
type CharacterDraft struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Analysis は脚本解析の結果です。
type Analysis struct {
	Shots      []ShotDraft      `json:"shots"`
	Characters []CharacterDraft `json:"characters"`
}

// ShotUpdate は UpdateShotField に渡す部分更新です。nil のフィールドは変更しません。
type ShotUpdate struct {
	SceneHeader       *string   `json:"sceneHeader,omitempty"`
	ActionDescription *string   `json:"actionDescription,omitempty"`
	CameraAngle       *string   `json:"cameraAngle,omitempty"`
	VisualPrompt      *string   `json:"visualPrompt,omitempty"`
	ImageURL          *string   `json:"imageUrl,omitempty"`
	Variations        *[]string `json:"variations,omitempty"`
	Progress          *int      `json:"progress,omitempty"`
	IsGenerating      *bool     `json:"isGenerating,omitempty"`
}

// TouchesGeneration は生成処理が所有するフィールドへの変更を含むかを返します。
func (u ShotUpdate) TouchesGeneration() bool {
	return u.ImageURL != nil || u.Variations != nil || u.Progress != nil || u.IsGenerating != nil
}

// PromptText は画像生成に使うテキストを返します。アクション記述が空ならビジュアルプロンプトを使います。
func (s Shot) PromptText() string {
	if s.ActionDescription != "" {
		return s.ActionDescription
	}
	return s.VisualPrompt
}

// HasVariation は url がこのショットのバリエーションに含まれるかを返します。
func (s Shot) HasVariation(url string) bool {
	return slices.Contains(s.Variations, url)
}

// Clone はショットのディープコピーを返します。
func (s Shot) Clone() Shot {
	c := s
	c.Variations = slices.Clone(s.Variations)
	if s.OverrideSettings != nil {
		o := s.OverrideSettings.Clone()
		c.OverrideSettings = &o
	}
	return c
}

// Clone はエピソードのディープコピーを返します。
func (e Episode) Clone() Episode {
	c := e
	if e.Shots != nil {
		c.Shots = make([]Shot, len(e.Shots))
		for i, s := range e.Shots {
			c.Shots[i] = s.Clone()
		}
	}
	c.Characters = slices.Clone(e.Characters)
	if e.LastAnalyzed != nil {
		t := *e.LastAnalyzed
		c.LastAnalyzed = &t
	}
	return c
}

// FindShot は ID に一致するショットの位置を返します。見つからなければ -1 です。
func (e Episode) FindShot(shotID string) int {
	return slices.IndexFunc(e.Shots, func(s Shot) bool { return s.ID == shotID })
}

// CloneEpisodes はエピソード列のディープコピーを返します。
func CloneEpisodes(eps []Episode) []Episode {
	if eps == nil {
		return nil
	}
	out := make([]Episode, len(eps))
	for i, ep := range eps {
		out[i] = ep.Clone()
	}
	return out
}
