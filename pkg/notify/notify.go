// Package notify はユーザーに見せる失敗通知を配信します。
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level は通知の重要度です。
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Kind は通知の発生元です。
type Kind string

const (
	KindGeneration Kind = "generation"
	KindAnalysis   Kind = "analysis"
	KindEdit       Kind = "edit"
	KindReference  Kind = "reference"
	KindInput      Kind = "input"
)

// Notification はユーザーに表示する通知です。
type Notification struct {
	Level     Level     `json:"level"`
	Kind      Kind      `json:"kind"`
	EpisodeID string    `json:"episodeId,omitempty"`
	ShotID    string    `json:"shotId,omitempty"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
	Time      time.Time `json:"time"`
}

// Notifier は通知の配信先です。
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// SlogNotifier は通知を構造化ログとして出力します。
type SlogNotifier struct {
	Logger *slog.Logger
}

func (s SlogNotifier) Notify(ctx context.Context, n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"kind", n.Kind, "episode_id", n.EpisodeID, "shot_id", n.ShotID}
	if n.Err != nil {
		attrs = append(attrs, "error", n.Err)
	}
	if n.Level == LevelError {
		logger.ErrorContext(ctx, n.Message, attrs...)
		return
	}
	logger.InfoContext(ctx, n.Message, attrs...)
}

// Func は関数を Notifier として扱うアダプタです。
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Multi は複数の Notifier に同じ通知を配信します。
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(ctx context.Context, n Notification) {
		for _, nt := range notifiers {
			if nt != nil {
				nt.Notify(ctx, n)
			}
		}
	})
}

// Recorder は受け取った通知を保持します。テストや CLI の終了コード判定に使います。
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// Notifications は受け取った通知のコピーを返します。
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}
