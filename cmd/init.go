package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/shouni/go-storyboard-kit/pkg/project"
	"github.com/shouni/go-storyboard-kit/pkg/store"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "初期エピソード入りのプロジェクトファイルを作るのだ。",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfg.ProjectFile); err == nil && !initForce {
			return fmt.Errorf("%s は既に存在するのだ (上書きするには --force)", cfg.ProjectFile)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := project.Save(cfg.ProjectFile, store.DefaultState()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s を作成したのだ\n", cfg.ProjectFile)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "既存のファイルを上書きするのだ。")
}
