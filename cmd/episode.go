package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var episodeCmd = &cobra.Command{
	Use:   "episode",
	Short: "エピソードを管理するのだ。",
}

var episodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "エピソードの一覧を表示するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		current := st.CurrentEpisodeID()
		out := cmd.OutOrStdout()
		for _, ep := range st.Episodes() {
			mark := " "
			if ep.ID == current {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %s  %s  (%d ショット)\n", mark, ep.ID, ep.Title, len(ep.Shots))
		}
		return nil
	},
}

var episodeAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "エピソードを追加して現在のエピソードにするのだ。",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		id := st.AddEpisode()
		if len(args) == 1 {
			st.RenameEpisode(id, args[0])
		}
		if err := saveStore(st); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var episodeRenameCmd = &cobra.Command{
	Use:   "rename <episode-id> <title>",
	Short: "エピソードの名前を変えるのだ。",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if _, err := st.Episode(args[0]); err != nil {
			return err
		}
		st.RenameEpisode(args[0], args[1])
		return saveStore(st)
	},
}

var episodeDeleteCmd = &cobra.Command{
	Use:   "delete <episode-id>",
	Short: "エピソードを削除するのだ。最後の 1 件は削除できないのだよ。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		before := len(st.Episodes())
		st.DeleteEpisode(args[0])
		if len(st.Episodes()) == before {
			logger.Warn("エピソードは削除されなかったのだ", "episode_id", args[0])
			return nil
		}
		return saveStore(st)
	},
}

var episodeUseCmd = &cobra.Command{
	Use:   "use <episode-id>",
	Short: "現在のエピソードを切り替えるのだ。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if _, err := st.Episode(args[0]); err != nil {
			return err
		}
		st.SetCurrentEpisode(args[0])
		return saveStore(st)
	},
}

var scriptFile string

var episodeScriptCmd = &cobra.Command{
	Use:   "script [episode-id]",
	Short: "エピソードの脚本を置き換えるのだ (--file、省略時は標準入力)。",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		var id string
		if len(args) == 1 {
			id = args[0]
		}
		id = episodeOrCurrent(st, id)
		if _, err := st.Episode(id); err != nil {
			return err
		}

		var data []byte
		if scriptFile != "" && scriptFile != "-" {
			data, err = os.ReadFile(scriptFile)
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("脚本を読み込めなかったのだ: %w", err)
		}

		st.ReplaceScript(id, strings.TrimRight(string(data), "\n"))
		return saveStore(st)
	},
}

func init() {
	episodeScriptCmd.Flags().StringVarP(&scriptFile, "file", "f", "", "脚本ファイルのパスなのだ。")
	episodeCmd.AddCommand(
		episodeListCmd,
		episodeAddCmd,
		episodeRenameCmd,
		episodeDeleteCmd,
		episodeUseCmd,
		episodeScriptCmd,
	)
}
