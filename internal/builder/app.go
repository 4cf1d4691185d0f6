package builder

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shouni/go-storyboard-kit/internal/config"
	"github.com/shouni/go-storyboard-kit/pkg/project"
	"github.com/shouni/go-storyboard-kit/pkg/store"
	"github.com/shouni/go-storyboard-kit/pkg/workflow"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持します。
// cmd の各コマンドと HTTP サーバーはこれを通して Store と Manager を扱います。
type AppContext struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Manager  *workflow.Manager
	Registry *prometheus.Registry
}

// Save は現在の状態をプロジェクトファイルに書き込みます。
func (a *AppContext) Save() error {
	if err := project.Save(a.Config.ProjectFile, a.Store.Snapshot()); err != nil {
		return err
	}
	a.Logger.Debug("プロジェクトを保存しました", "path", a.Config.ProjectFile)
	return nil
}
