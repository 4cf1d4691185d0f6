package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var selectEpisode string

var selectCmd = &cobra.Command{
	Use:   "select <shot-id> <variation-url|index>",
	Short: "バリエーションの中から採用する画像を選ぶのだ。",
	Long: `2 番目の引数が数字なら 1 始まりのバリエーション番号として扱うのだ。
バリエーションに含まれない URL を指定しても何も変わらないのだよ。`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		episodeID := episodeOrCurrent(st, selectEpisode)
		shot, err := st.Shot(episodeID, args[0])
		if err != nil {
			return err
		}

		url := args[1]
		if n, err := strconv.Atoi(url); err == nil {
			if n < 1 || n > len(shot.Variations) {
				return fmt.Errorf("バリエーション番号は 1〜%d で指定するのだ", len(shot.Variations))
			}
			url = shot.Variations[n-1]
		}

		if !shot.HasVariation(url) {
			logger.Warn("バリエーションに含まれない画像なので無視したのだ", "shot_id", shot.ID)
			return nil
		}
		st.SelectVariation(episodeID, shot.ID, url)
		if err := saveStore(st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s の画像を更新したのだ\n", shot.ID)
		return nil
	},
}

func init() {
	selectCmd.Flags().StringVarP(&selectEpisode, "episode", "e", "", "対象のエピソード ID なのだ。")
}
