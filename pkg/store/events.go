package store

import (
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// EventType は Store の変更種別です。
type EventType string

const (
	EventEpisodesChanged EventType = "episodes_changed"
	EventShotChanged     EventType = "shot_changed"
	EventProgress        EventType = "progress"
	EventSettingsChanged EventType = "settings_changed"
)

// Event は購読者に配信される変更通知です。Shot は変更後のショットのコピーです。
type Event struct {
	Type      EventType    `json:"type"`
	EpisodeID string       `json:"episodeId,omitempty"`
	ShotID    string       `json:"shotId,omitempty"`
	Shot      *domain.Shot `json:"shot,omitempty"`
	Time      time.Time    `json:"time"`
}

const subscriberBuffer = 64

// Subscribe は変更イベントを受け取るチャネルと、購読を解除する関数を返します。
// 配信はノンブロッキングで、受信が追いつかない購読者のイベントは破棄されます。
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.SubscribeBuffered(subscriberBuffer)
}

// SubscribeBuffered はバッファサイズを指定して購読します。
func (s *Store) SubscribeBuffered(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// publish は書き込みロック保持中に呼ばれるため、イベント順序は状態の変更順と一致します。
func (s *Store) publish(ev Event) {
	ev.Time = s.now()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("購読者のバッファが満杯のためイベントを破棄しました", "type", ev.Type, "shot_id", ev.ShotID)
		}
	}
}

func (s *Store) publishShot(typ EventType, episodeID, shotID string) {
	i := indexEpisode(s.state.Episodes, episodeID)
	if i < 0 {
		return
	}
	j := s.state.Episodes[i].FindShot(shotID)
	if j < 0 {
		return
	}
	shot := s.state.Episodes[i].Shots[j].Clone()
	s.publish(Event{Type: typ, EpisodeID: episodeID, ShotID: shotID, Shot: &shot})
}
