package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/shouni/go-storyboard-kit/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API と WebSocket でストーリーボードを公開するのだ。",
	Long: `生成の進捗と通知は /ws に流れるのだ。/metrics で Prometheus のメトリクスも見られるのだよ。
状態の変更は少し待ってからまとめてプロジェクトファイルに保存されるのだ。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := server.NewHub(logger)
		app, err := buildApp(ctx, hub)
		if err != nil {
			return err
		}

		addr := cfg.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		srv := server.New(app.Manager, hub, server.Options{
			Gatherer: app.Registry,
			Save:     app.Save,
			Logger:   logger,
		})
		logger.Info("サーバーを起動するのだ", "addr", addr, "project", cfg.ProjectFile)
		if err := srv.Run(ctx, addr); err != nil {
			return err
		}
		// 停止時に最後の状態を書き出すのだ
		return app.Save()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "待ち受けアドレスなのだ (環境変数 STORYBOARD_ADDR)。")
}

