package cmd

import (
	"fmt"

	"github.com/shouni/go-storyboard-kit/pkg/publisher"
	"github.com/shouni/go-storyboard-kit/pkg/runner"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "全エピソードの脚本・画像・メタデータを zip に書き出すのだ。",
	Long: `--output がディレクトリならその中に Aim_Project_Export_<時刻>.zip を作るのだ。
.zip で終わるパスならそのファイル名で書き出すのだよ。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		er := runner.NewExportRunner(publisher.NewArchiver(logger))
		path, res, err := er.Run(cmd.Context(), st.Episodes(), exportOutput)
		if err != nil {
			return err
		}
		logger.Info("エクスポートが完了したのだ", "path", path, "episodes", res.Episodes, "images", len(res.ImagePaths), "skipped", res.Skipped)
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "出力先のディレクトリまたは zip ファイルなのだ。")
}
