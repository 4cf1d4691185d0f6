// Package store はエピソードとショットの正規状態を保持し、すべての変更を直列化します。
package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/settings"
)

// Store はストーリーボードの唯一の状態所有者です。書き込みは 1 つずつ順に適用されます。
type Store struct {
	mu    sync.RWMutex
	state State

	subMu       sync.Mutex
	subscribers map[chan Event]struct{}

	newID  func(prefix string) string
	now    func() time.Time
	logger *slog.Logger
}

// Option は Store の生成オプションです。
type Option func(*Store)

// WithState は初期状態を指定します。
func WithState(st State) Option {
	return func(s *Store) { s.state = st.Clone() }
}

// WithIDGenerator は ID の採番方法を差し替えます。
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock は時刻の取得方法を差し替えます。
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// WithLogger はロガーを指定します。
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New は Store を生成します。状態が指定されない場合は DefaultState から始まります。
func New(opts ...Option) (*Store, error) {
	s := &Store{
		state:       DefaultState(),
		subscribers: make(map[chan Event]struct{}),
		newID:       func(prefix string) string { return prefix + "-" + uuid.NewString() },
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	st, err := s.state.normalize(s.logger)
	if err != nil {
		return nil, fmt.Errorf("Store の初期状態が不正です: %w", err)
	}
	s.state = st
	return s, nil
}

// Snapshot は現在の状態のディープコピーを返します。
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Episodes は全エピソードのコピーを返します。
func (s *Store) Episodes() []domain.Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneEpisodes(s.state.Episodes)
}

// CurrentEpisodeID はカレントエピソードの ID を返します。
func (s *Store) CurrentEpisodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentEpisodeID
}

// Episode は指定エピソードのコピーを返します。
func (s *Store) Episode(id string) (domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexEpisode(s.state.Episodes, id)
	if i < 0 {
		return domain.Episode{}, fmt.Errorf("%w: %s", domain.ErrEpisodeNotFound, id)
	}
	return s.state.Episodes[i].Clone(), nil
}

// Shot は指定ショットのコピーを返します。
func (s *Store) Shot(episodeID, shotID string) (domain.Shot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shotLocked(episodeID, shotID)
}

func (s *Store) shotLocked(episodeID, shotID string) (domain.Shot, error) {
	i := indexEpisode(s.state.Episodes, episodeID)
	if i < 0 {
		return domain.Shot{}, fmt.Errorf("%w: %s", domain.ErrEpisodeNotFound, episodeID)
	}
	j := s.state.Episodes[i].FindShot(shotID)
	if j < 0 {
		return domain.Shot{}, fmt.Errorf("%w: %s", domain.ErrShotNotFound, shotID)
	}
	return s.state.Episodes[i].Shots[j].Clone(), nil
}

// Settings はプロジェクト設定のコピーを返します。
func (s *Store) Settings() domain.ProjectSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Settings.Clone()
}

// AddEpisode は空のエピソードを追加してカレントにし、その ID を返します。
func (s *Store) AddEpisode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID("ep")
	s.state.Episodes = AddEpisode(s.state.Episodes, id, NextEpisodeTitle(s.state.Episodes))
	s.state.CurrentEpisodeID = id
	s.publish(Event{Type: EventEpisodesChanged, EpisodeID: id})
	return id
}

// RenameEpisode はエピソード名を変更します。
func (s *Store) RenameEpisode(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Episodes = RenameEpisode(s.state.Episodes, id, title)
	s.publish(Event{Type: EventEpisodesChanged, EpisodeID: id})
}

// DeleteEpisode はエピソードを削除します。最後の 1 件は削除されません。
func (s *Store) DeleteEpisode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.state.Episodes)
	s.state.Episodes, s.state.CurrentEpisodeID = DeleteEpisode(s.state.Episodes, s.state.CurrentEpisodeID, id)
	if len(s.state.Episodes) == before {
		s.logger.Debug("エピソードの削除をスキップしました", "episode_id", id, "remaining", before)
		return
	}
	s.publish(Event{Type: EventEpisodesChanged, EpisodeID: id})
}

// SetCurrentEpisode はカレントエピソードを切り替えます。存在しない ID は無視します。
func (s *Store) SetCurrentEpisode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexEpisode(s.state.Episodes, id) < 0 {
		return
	}
	s.state.CurrentEpisodeID = id
	s.publish(Event{Type: EventEpisodesChanged, EpisodeID: id})
}

// ReplaceScript は脚本テキストを置き換えます。
func (s *Store) ReplaceScript(episodeID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Episodes = ReplaceScript(s.state.Episodes, episodeID, text)
	s.publish(Event{Type: EventEpisodesChanged, EpisodeID: episodeID})
}

// ApplyAnalysis は解析結果でショットと登場人物を置き換えます。ショット ID は Store が採番します。
func (s *Store) ApplyAnalysis(episodeID string, drafts []domain.ShotDraft, characters []domain.CharacterDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shots := make([]domain.Shot, 0, len(drafts))
	for _, d := range drafts {
		shots = append(shots, domain.Shot{
			ID:                s.newID("shot"),
			SceneHeader:       d.SceneHeader,
			ActionDescription: d.ActionDescription,
			CameraAngle:       d.CameraAngle,
			VisualPrompt:      d.VisualPrompt,
		})
	}
	s.state.Episodes = ApplyAnalysis(s.state.Episodes, episodeID, shots, characters, s.now())
	s.publish(Event{Type: EventEpisodesChanged, EpisodeID: episodeID})
}

// UpdateShotField はショットに部分更新をマージします。
func (s *Store) UpdateShotField(episodeID, shotID string, u domain.ShotUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Episodes = UpdateShotField(s.state.Episodes, episodeID, shotID, u)
	s.publishShot(EventShotChanged, episodeID, shotID)
}

// UpdateShotOverrides は上書き設定を置き換えます。スタイル参照は上限件数に切り詰めます。
func (s *Store) UpdateShotOverrides(episodeID, shotID string, o *domain.ShotSettings) error {
	if err := settings.ValidateOverrides(o); err != nil {
		return err
	}
	if o != nil && o.StyleReference != nil {
		c := o.Clone()
		clamped, dropped := settings.ClampReferences(*c.StyleReference)
		if dropped > 0 {
			s.logger.Warn("スタイル参照が上限を超えたため切り詰めました", "shot_id", shotID, "dropped", dropped)
		}
		c.StyleReference = &clamped
		o = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Episodes = UpdateShotOverrides(s.state.Episodes, episodeID, shotID, o)
	s.publishShot(EventShotChanged, episodeID, shotID)
	return nil
}

// SelectVariation は表示画像をバリエーションの 1 つに切り替えます。
func (s *Store) SelectVariation(episodeID, shotID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Episodes = SelectVariation(s.state.Episodes, episodeID, shotID, url)
	s.publishShot(EventShotChanged, episodeID, shotID)
}

// UpdateSettings はプロジェクト設定を丸ごと置き換えます。参照ライブラリは上限件数に切り詰めます。
func (s *Store) UpdateSettings(p domain.ProjectSettings) error {
	if err := settings.ValidateProject(p); err != nil {
		return err
	}
	p = p.Clone()
	var dropped int
	p.DefaultStyleReference, dropped = settings.ClampReferences(p.DefaultStyleReference)
	if dropped > 0 {
		s.logger.Warn("スタイル参照が上限を超えたため切り詰めました", "dropped", dropped)
	}
	p.CharacterLibrary, dropped = settings.ClampReferences(p.CharacterLibrary)
	if dropped > 0 {
		s.logger.Warn("キャラクター参照が上限を超えたため切り詰めました", "dropped", dropped)
	}
	if p.DefaultStyleReference == nil {
		p.DefaultStyleReference = []domain.StyleReference{}
	}
	if p.CharacterLibrary == nil {
		p.CharacterLibrary = []domain.CharacterReference{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Settings = p
	s.publish(Event{Type: EventSettingsChanged})
	return nil
}

// AddCharacterReference はキャラクターライブラリに追加し、採番済みのエントリを返します。
// 画像は data URL である必要があります。
func (s *Store) AddCharacterReference(ref domain.CharacterReference) (domain.CharacterReference, error) {
	if err := settings.ValidateImageRef(ref.ImageURL); err != nil {
		return domain.CharacterReference{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !settings.CanAdd(len(s.state.Settings.CharacterLibrary)) {
		return domain.CharacterReference{}, domain.ErrReferenceLimit
	}
	if ref.ID == "" {
		ref.ID = s.newID("char")
	}
	s.state.Settings.CharacterLibrary = append(slices.Clone(s.state.Settings.CharacterLibrary), ref)
	s.publish(Event{Type: EventSettingsChanged})
	return ref, nil
}

// RemoveCharacterReference はキャラクターライブラリから削除します。
func (s *Store) RemoveCharacterReference(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Settings.CharacterLibrary = slices.DeleteFunc(slices.Clone(s.state.Settings.CharacterLibrary),
		func(c domain.CharacterReference) bool { return c.ID == id })
	s.publish(Event{Type: EventSettingsChanged})
}

// AddStyleReference はプロジェクト既定のスタイル参照に追加します。
func (s *Store) AddStyleReference(ref domain.StyleReference) (domain.StyleReference, error) {
	if err := settings.ValidateImageRef(ref.ImageURL); err != nil {
		return domain.StyleReference{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !settings.CanAdd(len(s.state.Settings.DefaultStyleReference)) {
		return domain.StyleReference{}, domain.ErrReferenceLimit
	}
	if ref.ID == "" {
		ref.ID = s.newID("style")
	}
	s.state.Settings.DefaultStyleReference = append(slices.Clone(s.state.Settings.DefaultStyleReference), ref)
	s.publish(Event{Type: EventSettingsChanged})
	return ref, nil
}

// RemoveStyleReference はプロジェクト既定のスタイル参照から削除します。
func (s *Store) RemoveStyleReference(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Settings.DefaultStyleReference = slices.DeleteFunc(slices.Clone(s.state.Settings.DefaultStyleReference),
		func(r domain.StyleReference) bool { return r.ID == id })
	s.publish(Event{Type: EventSettingsChanged})
}
