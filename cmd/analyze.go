package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [episode-id]",
	Short: "エピソードの脚本をショットに分解するのだ。",
	Long: `AI に脚本を解析させ、エピソードのショットと登場人物を置き換えるのだ。
エピソードを省略すると現在のエピソードが対象なのだよ。解析に失敗した場合は何も変わらないのだ。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}

		var id string
		if len(args) == 1 {
			id = args[0]
		}
		id = episodeOrCurrent(app.Store, id)

		analysis, err := app.Manager.AnalyzeScript(ctx, id)
		if err != nil {
			return err
		}
		if err := app.Save(); err != nil {
			return err
		}

		ep, err := app.Store.Episode(id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d ショット / %d 人物を抽出したのだ\n", len(analysis.Shots), len(analysis.Characters))
		for i, s := range ep.Shots {
			fmt.Fprintf(out, "%2d. %s  [%s] %s\n", i+1, s.ID, s.CameraAngle, shorten(s.ActionDescription, 40))
		}
		return nil
	},
}
