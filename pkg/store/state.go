package store

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/settings"
)

// DefaultEpisodeID は起動時に用意されるエピソードの ID です。
const DefaultEpisodeID = "ep-1"

const defaultEpisodeTitle = "第一场：霓虹面馆"

// DefaultScript は初期エピソードの脚本です。
const DefaultScript = `内景 霓虹面馆 - 夜

窗外雨水冲刷着霓虹灯的倒影。凯（30多岁，颓废，机械手臂）佝偻着背，对着一碗热气腾腾的面条。

他看了一眼手表。全息投影信息闪烁着：“目标即将到达”。

门滑开了。一个模糊的人影走了进来，全身湿透。

凯
(头也不抬)
你迟到了。`

// State は Store が保持する正規の状態です。プロジェクトファイルへの保存単位でもあります。
type State struct {
	Episodes         []domain.Episode       `json:"episodes" yaml:"episodes"`
	CurrentEpisodeID string                 `json:"currentEpisodeId" yaml:"currentEpisodeId"`
	Settings         domain.ProjectSettings `json:"settings" yaml:"settings"`
}

// DefaultState は初期エピソード 1 件と既定設定からなる状態を返します。
func DefaultState() State {
	return State{
		Episodes: []domain.Episode{{
			ID:            DefaultEpisodeID,
			Title:         defaultEpisodeTitle,
			ScriptContent: DefaultScript,
			Shots:         []domain.Shot{},
			Characters:    []domain.CharacterDraft{},
		}},
		CurrentEpisodeID: DefaultEpisodeID,
		Settings:         domain.DefaultProjectSettings(),
	}
}

// Clone は状態のディープコピーを返します。
func (s State) Clone() State {
	return State{
		Episodes:         domain.CloneEpisodes(s.Episodes),
		CurrentEpisodeID: s.CurrentEpisodeID,
		Settings:         s.Settings.Clone(),
	}
}

// normalize は外部から読み込んだ状態の不変条件を回復します。
// 修復できるもの (上限超過の参照、送信できないスタイル参照、進捗と表示画像の不整合) は警告を出して直し、
// エピソードが 0 件の場合や列挙値が不正な場合はエラーです。
func (s State) normalize(logger *slog.Logger) (State, error) {
	if len(s.Episodes) == 0 {
		return s, fmt.Errorf("エピソードが 1 件も含まれていません")
	}
	if indexEpisode(s.Episodes, s.CurrentEpisodeID) < 0 {
		s.CurrentEpisodeID = s.Episodes[0].ID
	}

	s.Settings = s.Settings.Clone()
	s.Settings.DefaultStyleReference = loadStyleReferences(logger, s.Settings.DefaultStyleReference, "")
	var dropped int
	s.Settings.CharacterLibrary, dropped = settings.ClampReferences(s.Settings.CharacterLibrary)
	if dropped > 0 {
		logger.Warn("キャラクター参照が上限を超えたため切り詰めました", "dropped", dropped)
	}
	if s.Settings.CharacterLibrary == nil {
		s.Settings.CharacterLibrary = []domain.CharacterReference{}
	}
	if err := settings.ValidateProject(s.Settings); err != nil {
		return s, err
	}

	s.Episodes = domain.CloneEpisodes(s.Episodes)
	for i := range s.Episodes {
		for j := range s.Episodes[i].Shots {
			shot := &s.Episodes[i].Shots[j]
			// 保存時点で生成中だったショットは再開できないため待機状態に戻す
			if shot.IsGenerating {
				shot.IsGenerating = false
				shot.Progress = 0
			}
			if o := shot.OverrideSettings; o != nil && o.StyleReference != nil {
				refs := loadStyleReferences(logger, *o.StyleReference, shot.ID)
				o.StyleReference = &refs
			}
			if err := settings.ValidateOverrides(shot.OverrideSettings); err != nil {
				return s, fmt.Errorf("ショット %s: %w", shot.ID, err)
			}
			*shot = settleShot(*shot, true)
		}
	}
	return s, nil
}

// loadStyleReferences は送信できない画像のスタイル参照を除き、上限件数に切り詰めます。
func loadStyleReferences(logger *slog.Logger, refs []domain.StyleReference, shotID string) []domain.StyleReference {
	kept := make([]domain.StyleReference, 0, len(refs))
	for _, r := range refs {
		if err := settings.ValidateImageRef(r.ImageURL); err != nil {
			logger.Warn("送信できないスタイル参照を除外しました", "shot_id", shotID, "style_id", r.ID, "error", err)
			continue
		}
		kept = append(kept, r)
	}
	kept, dropped := settings.ClampReferences(kept)
	if dropped > 0 {
		logger.Warn("スタイル参照が上限を超えたため切り詰めました", "shot_id", shotID, "dropped", dropped)
	}
	return kept
}
