package store

import (
	"fmt"
	"slices"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// 以下の関数はすべて入力を変更せず、新しいエピソード列を返す全域関数です。
// 存在しない ID を指定した場合は入力をそのまま返します。

// AddEpisode は空のエピソードを末尾に追加します。
func AddEpisode(eps []domain.Episode, id, title string) []domain.Episode {
	out := slices.Clone(eps)
	return append(out, domain.Episode{
		ID:         id,
		Title:      title,
		Shots:      []domain.Shot{},
		Characters: []domain.CharacterDraft{},
	})
}

// NextEpisodeTitle は新規エピソードの既定タイトルを返します。
func NextEpisodeTitle(eps []domain.Episode) string {
	return fmt.Sprintf("新剧集 %d", len(eps)+1)
}

// RenameEpisode はエピソードのタイトルを変更します。
func RenameEpisode(eps []domain.Episode, id, title string) []domain.Episode {
	return mapEpisode(eps, id, func(ep domain.Episode) domain.Episode {
		ep.Title = title
		return ep
	})
}

// DeleteEpisode はエピソードを削除し、新しいカレント ID と共に返します。
// 残り 1 件のときは何もしません。カレントを削除した場合は先頭のエピソードがカレントになります。
func DeleteEpisode(eps []domain.Episode, currentID, id string) ([]domain.Episode, string) {
	if len(eps) <= 1 {
		return eps, currentID
	}
	i := indexEpisode(eps, id)
	if i < 0 {
		return eps, currentID
	}
	out := slices.Delete(slices.Clone(eps), i, i+1)
	if currentID == id || indexEpisode(out, currentID) < 0 {
		currentID = out[0].ID
	}
	return out, currentID
}

// ReplaceScript は脚本テキストを置き換えます。
func ReplaceScript(eps []domain.Episode, id, text string) []domain.Episode {
	return mapEpisode(eps, id, func(ep domain.Episode) domain.Episode {
		ep.ScriptContent = text
		return ep
	})
}

// ApplyAnalysis はショットと登場人物を丸ごと置き換え、解析時刻を記録します。
func ApplyAnalysis(eps []domain.Episode, id string, shots []domain.Shot, characters []domain.CharacterDraft, now time.Time) []domain.Episode {
	return mapEpisode(eps, id, func(ep domain.Episode) domain.Episode {
		ep.Shots = slices.Clone(shots)
		if ep.Shots == nil {
			ep.Shots = []domain.Shot{}
		}
		ep.Characters = slices.Clone(characters)
		if ep.Characters == nil {
			ep.Characters = []domain.CharacterDraft{}
		}
		ep.LastAnalyzed = &now
		return ep
	})
}

// UpdateShotField は指定ショットにだけ部分更新をマージします。
func UpdateShotField(eps []domain.Episode, episodeID, shotID string, u domain.ShotUpdate) []domain.Episode {
	return mapShot(eps, episodeID, shotID, func(s domain.Shot) domain.Shot {
		return applyShotUpdate(s, u)
	})
}

// UpdateShotOverrides は上書き設定を置き換えます。nil は全項目を継承に戻します。
func UpdateShotOverrides(eps []domain.Episode, episodeID, shotID string, o *domain.ShotSettings) []domain.Episode {
	return mapShot(eps, episodeID, shotID, func(s domain.Shot) domain.Shot {
		if o == nil {
			s.OverrideSettings = nil
			return s
		}
		c := o.Clone()
		s.OverrideSettings = &c
		return s
	})
}

// SelectVariation は url がバリエーションに含まれる場合のみ表示画像を切り替えます。
func SelectVariation(eps []domain.Episode, episodeID, shotID, url string) []domain.Episode {
	i := indexEpisode(eps, episodeID)
	if i < 0 {
		return eps
	}
	j := eps[i].FindShot(shotID)
	if j < 0 || !eps[i].Shots[j].HasVariation(url) {
		return eps
	}
	return mapShot(eps, episodeID, shotID, func(s domain.Shot) domain.Shot {
		s.ImageURL = url
		return s
	})
}

// applyShotUpdate はショットに部分更新を適用し、不変条件を保つよう正規化します。
func applyShotUpdate(s domain.Shot, u domain.ShotUpdate) domain.Shot {
	wasGenerating := s.IsGenerating

	if u.SceneHeader != nil {
		s.SceneHeader = *u.SceneHeader
	}
	if u.ActionDescription != nil {
		s.ActionDescription = *u.ActionDescription
	}
	if u.CameraAngle != nil {
		s.CameraAngle = *u.CameraAngle
	}
	if u.VisualPrompt != nil {
		s.VisualPrompt = *u.VisualPrompt
	}
	if u.ImageURL != nil {
		s.ImageURL = *u.ImageURL
	}
	if u.Variations != nil {
		s.Variations = slices.Clone(*u.Variations)
	}
	if u.Progress != nil {
		s.Progress = *u.Progress
	}
	if u.IsGenerating != nil {
		s.IsGenerating = *u.IsGenerating
	}

	// 生成フィールドへの外部編集は実行中のバッチを無効化する
	if u.TouchesGeneration() {
		s.GenerationEpoch++
		if wasGenerating && u.IsGenerating == nil {
			s.IsGenerating = false
		}
	}

	return settleShot(s, u.ImageURL != nil)
}

// settleShot は進捗と表示画像の不変条件を回復します。
// keepImage が真なら、バリエーションに無い表示画像はバリエーションへ追加し、偽なら先頭のバリエーションへ戻します。
func settleShot(s domain.Shot, keepImage bool) domain.Shot {
	if !s.IsGenerating && s.Progress != 0 && s.Progress != 100 {
		s.Progress = 0
	}
	s.Progress = min(max(s.Progress, 0), 100)

	if len(s.Variations) > 0 && !s.HasVariation(s.ImageURL) {
		if keepImage && s.ImageURL != "" {
			s.Variations = append(slices.Clone(s.Variations), s.ImageURL)
		} else {
			s.ImageURL = s.Variations[0]
		}
	}
	return s
}

func indexEpisode(eps []domain.Episode, id string) int {
	return slices.IndexFunc(eps, func(ep domain.Episode) bool { return ep.ID == id })
}

func mapEpisode(eps []domain.Episode, id string, fn func(domain.Episode) domain.Episode) []domain.Episode {
	i := indexEpisode(eps, id)
	if i < 0 {
		return eps
	}
	out := slices.Clone(eps)
	out[i] = fn(out[i])
	return out
}

func mapShot(eps []domain.Episode, episodeID, shotID string, fn func(domain.Shot) domain.Shot) []domain.Episode {
	i := indexEpisode(eps, episodeID)
	if i < 0 {
		return eps
	}
	j := eps[i].FindShot(shotID)
	if j < 0 {
		return eps
	}
	out := slices.Clone(eps)
	shots := slices.Clone(out[i].Shots)
	shots[j] = fn(shots[j])
	out[i].Shots = shots
	return out
}
