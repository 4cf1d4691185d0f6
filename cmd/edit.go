package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var editEpisode string

var editCmd = &cobra.Command{
	Use:   "edit <shot-id> <instruction...>",
	Short: "ショットの現在の画像を自然文の指示で編集するのだ。",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		episodeID := episodeOrCurrent(app.Store, editEpisode)
		instruction := strings.Join(args[1:], " ")

		if _, err := app.Manager.EditShotImage(ctx, episodeID, args[0], instruction); err != nil {
			return err
		}
		if err := app.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s の画像を編集したのだ\n", args[0])
		return nil
	},
}

func init() {
	editCmd.Flags().StringVarP(&editEpisode, "episode", "e", "", "対象のエピソード ID なのだ。")
}
