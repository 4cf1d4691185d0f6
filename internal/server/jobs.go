package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// jobTracker はリクエストの完了後も続くバックグラウンド処理を追跡します。
type jobTracker struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

// start は fn を別の goroutine で実行します。fn のパニックはログに記録し、プロセスは停止させません。
func (j *jobTracker) start(fn func()) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger := j.logger
				if logger == nil {
					logger = slog.Default()
				}
				logger.Error("バックグラウンド処理でパニックが発生しました", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// wait はすべての処理の完了か ctx の終了まで待ちます。
func (j *jobTracker) wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
