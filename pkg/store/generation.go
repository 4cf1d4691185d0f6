package store

import (
	"slices"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// BeginGeneration はショットを生成中にし、新しい世代番号を返します。
// 以前のバッチはこの時点で無効になり、その後の書き込みは破棄されます。
func (s *Store) BeginGeneration(episodeID, shotID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.shotLocked(episodeID, shotID); err != nil {
		return 0, err
	}

	var epoch uint64
	s.state.Episodes = mapShot(s.state.Episodes, episodeID, shotID, func(sh domain.Shot) domain.Shot {
		sh.GenerationEpoch++
		sh.IsGenerating = true
		sh.Progress = 0
		epoch = sh.GenerationEpoch
		return sh
	})
	s.publishShot(EventShotChanged, episodeID, shotID)
	return epoch, nil
}

// ReportProgress はバッチの進捗を書き込みます。
// 世代番号が一致しない場合や進捗が後退する場合は何もせず false を返します。
func (s *Store) ReportProgress(episodeID, shotID string, epoch uint64, progress int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.currentForEpoch(episodeID, shotID, epoch)
	if !ok || !cur.IsGenerating || progress < cur.Progress {
		return false
	}
	s.state.Episodes = mapShot(s.state.Episodes, episodeID, shotID, func(sh domain.Shot) domain.Shot {
		sh.Progress = min(progress, 100)
		return sh
	})
	s.publishShot(EventProgress, episodeID, shotID)
	return true
}

// FinishGeneration はバッチの最終結果を確定します。
// 成功が 1 件以上あれば先頭を表示画像、全件をバリエーションにして進捗を 100 にします。
// 成功が 0 件なら画像とバリエーションは変更せず進捗を 0 に戻します。
// 世代番号が一致しない場合は何もせず false を返します。
func (s *Store) FinishGeneration(episodeID, shotID string, epoch uint64, successes []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.currentForEpoch(episodeID, shotID, epoch); !ok {
		return false
	}
	s.state.Episodes = mapShot(s.state.Episodes, episodeID, shotID, func(sh domain.Shot) domain.Shot {
		sh.IsGenerating = false
		if len(successes) == 0 {
			sh.Progress = 0
			return sh
		}
		sh.ImageURL = successes[0]
		sh.Variations = slices.Clone(successes)
		sh.Progress = 100
		return sh
	})
	s.publishShot(EventShotChanged, episodeID, shotID)
	return true
}

func (s *Store) currentForEpoch(episodeID, shotID string, epoch uint64) (domain.Shot, bool) {
	i := indexEpisode(s.state.Episodes, episodeID)
	if i < 0 {
		return domain.Shot{}, false
	}
	j := s.state.Episodes[i].FindShot(shotID)
	if j < 0 {
		return domain.Shot{}, false
	}
	sh := s.state.Episodes[i].Shots[j]
	return sh, sh.GenerationEpoch == epoch
}
