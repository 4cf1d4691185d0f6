package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/shouni/go-storyboard-kit/internal/config"
	"github.com/spf13/cobra"
)

// Version はビルド時に設定されるのだ。
var Version = "0.1.0"

var (
	cfg    config.Config
	logger *slog.Logger

	projectFile string
	logFile     string
	verbose     bool

	closeLog = func() error { return nil }
)

// rootCmd はサブコマンドなしで呼ばれたときのベースコマンドなのだ。
var rootCmd = &cobra.Command{
	Use:   "storyboard",
	Short: "脚本からストーリーボードを作る CLI なのだ。",
	Long: `脚本をショットに分解し、ショットごとに複数枚の画像を並列生成するのだ。
状態はプロジェクトファイル (既定: storyboard.yaml) に保存されるのだよ。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env は任意なのだ
		_ = godotenv.Load()

		cfg = config.LoadConfig()
		if cmd.Flags().Changed("project") {
			cfg.ProjectFile = projectFile
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectFile, "project", "P", "", "プロジェクトファイルのパスなのだ (環境変数 STORYBOARD_PROJECT)。")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "JSON ログを追記するファイルなのだ。")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "デバッグログを出力するのだ。")

	rootCmd.AddCommand(
		initCmd,
		analyzeCmd,
		generateCmd,
		selectCmd,
		editCmd,
		episodeCmd,
		overrideCmd,
		settingsCmd,
		libraryCmd,
		exportCmd,
		serveCmd,
	)
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
func Execute() error {
	return rootCmd.Execute()
}
