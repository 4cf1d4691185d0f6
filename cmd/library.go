package cmd

import (
	"fmt"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "キャラクター・スタイル参照ライブラリを管理するのだ。",
	Long: fmt.Sprintf(`参照ライブラリはそれぞれ最大 %d 件なのだ。
画像はローカルファイル、URL、data URL のどれでも指定できるのだよ。`, domain.MaxReferenceImages),
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "ライブラリの中身を表示するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		p := st.Settings()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "characters (%d/%d)\n", len(p.CharacterLibrary), domain.MaxReferenceImages)
		for _, c := range p.CharacterLibrary {
			fmt.Fprintf(out, "  %s  %s: %s\n", c.ID, c.Name, shorten(c.Description, 60))
		}
		fmt.Fprintf(out, "styles (%d/%d)\n", len(p.DefaultStyleReference), domain.MaxReferenceImages)
		for _, s := range p.DefaultStyleReference {
			fmt.Fprintf(out, "  %s  %s\n", s.ID, s.Tag)
		}
		return nil
	},
}

var libraryAddCharacterCmd = &cobra.Command{
	Use:   "add-character <name> <image>",
	Short: "画像から人物の特徴を抽出してキャラクターを登録するのだ。",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ref, err := readImageRef(args[1])
		if err != nil {
			return err
		}
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		c, err := app.Manager.AddCharacterReference(ctx, args[0], ref)
		if err != nil {
			return err
		}
		if err := app.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", c.ID, c.Description)
		return nil
	},
}

var styleTag string

var libraryAddStyleCmd = &cobra.Command{
	Use:   "add-style <image>",
	Short: "スタイル参照を登録するのだ。--tag を省略すると画像から画風を抽出するのだよ。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ref, err := readImageRef(args[0])
		if err != nil {
			return err
		}
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		s, err := app.Manager.AddStyleReference(ctx, styleTag, ref)
		if err != nil {
			return err
		}
		if err := app.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", s.ID, s.Tag)
		return nil
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <reference-id>",
	Short: "キャラクターまたはスタイル参照を削除するのだ。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		// ID の接頭辞で種類を決めず、両方から取り除くのだ
		st.RemoveCharacterReference(args[0])
		st.RemoveStyleReference(args[0])
		return saveStore(st)
	},
}

func init() {
	libraryAddStyleCmd.Flags().StringVarP(&styleTag, "tag", "t", "", "スタイルのタグなのだ。")
	libraryCmd.AddCommand(
		libraryListCmd,
		libraryAddCharacterCmd,
		libraryAddStyleCmd,
		libraryRemoveCmd,
	)
}
