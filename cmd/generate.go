package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/generator"
	"github.com/spf13/cobra"
)

var (
	generateEpisode string
	generateShot    string
	generateCount   int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "ショットの画像を並列生成するのだ。",
	Long: `--shot を指定するとそのショットだけ、省略するとエピソード内の全ショットを生成するのだ。
1 ショットにつき --count 枚を同時に生成し、成功したものがバリエーションになるのだよ。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		episodeID := episodeOrCurrent(app.Store, generateEpisode)

		var outcomes []generator.Outcome
		if generateShot != "" {
			out, err := app.Manager.GenerateShot(ctx, episodeID, generateShot, generateCount)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, out)
		} else {
			outcomes, err = app.Manager.GenerateEpisode(ctx, episodeID, generateCount)
			if err != nil {
				return err
			}
		}
		if err := app.Save(); err != nil {
			return err
		}

		failed := printOutcomes(cmd.OutOrStdout(), outcomes)
		if failed > 0 {
			return fmt.Errorf("%d ショットの生成に失敗したのだ", failed)
		}
		return nil
	},
}

func printOutcomes(w io.Writer, outcomes []generator.Outcome) int {
	failed := 0
	for i, out := range outcomes {
		fmt.Fprintf(w, "%2d. %-10s %d/%d 成功 (%s)\n", i+1, out.Status, out.Succeeded, out.Requested, out.Duration.Round(time.Millisecond))
		if out.Status == generator.StatusFailed {
			failed++
		}
	}
	return failed
}

func init() {
	generateCmd.Flags().StringVarP(&generateEpisode, "episode", "e", "", "対象のエピソード ID なのだ (省略時は現在のエピソード)。")
	generateCmd.Flags().StringVarP(&generateShot, "shot", "s", "", "対象のショット ID なのだ。")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 0, "1 ショットあたりの生成枚数なのだ (0 は GENERATION_BATCH_SIZE)。")
}
