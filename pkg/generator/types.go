package generator

import "time"

// Status はバッチの最終状態です。
type Status string

const (
	// StatusReady は 1 件以上の生成に成功した状態です。
	StatusReady Status = "ready"
	// StatusFailed は全試行が失敗した状態です。
	StatusFailed Status = "failed"
	// StatusSuperseded は新しいバッチや外部編集により結果が破棄された状態です。
	StatusSuperseded Status = "superseded"
)

// Outcome は 1 回のバッチ生成の結果です。Variations は完了順に並びます。
type Outcome struct {
	Status     Status
	Requested  int
	Succeeded  int
	Failed     int
	ImageURL   string
	Variations []string
	Errors     []error
	Duration   time.Duration
}

type attemptResult struct {
	index    int
	url      string
	err      error
	duration time.Duration
}
