package cmd

import (
	"fmt"
	"io"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/settings"
	"github.com/spf13/cobra"
)

// settingFlags はプロジェクト設定とショット上書きで共通のフラグなのだ。
type settingFlags struct {
	aspect  string
	style   string
	model   string
	subject string
}

func (f *settingFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.aspect, "aspect", "", "アスペクト比なのだ (2.39:1, 16:9, 4:3, 9:16, 1:1)。")
	fs.StringVar(&f.style, "style", "", "画風なのだ (cinematic-realism, concept-art, anime, sketch)。")
	fs.StringVar(&f.model, "model", "", "画像モデルなのだ (gemini-2.5-flash, gemini-3-pro)。")
	fs.StringVar(&f.subject, "subject", "", "被写体の参照テキストなのだ。空文字列を渡すと「参照なし」で上書きするのだよ。")
}

// applyOverride は指定されたフラグだけを上書き設定に写すのだ。
func (f *settingFlags) applyOverride(cmd *cobra.Command, o *domain.ShotSettings) {
	fs := cmd.Flags()
	if fs.Changed("aspect") {
		o.AspectRatio = domain.Ptr(domain.AspectRatio(f.aspect))
	}
	if fs.Changed("style") {
		o.ArtStyle = domain.Ptr(domain.ArtStyle(f.style))
	}
	if fs.Changed("model") {
		o.ModelType = domain.Ptr(domain.ModelType(f.model))
	}
	if fs.Changed("subject") {
		o.SubjectReference = domain.Ptr(f.subject)
	}
}

// applyProject は指定されたフラグだけをプロジェクト設定に写すのだ。
func (f *settingFlags) applyProject(cmd *cobra.Command, p *domain.ProjectSettings) {
	fs := cmd.Flags()
	if fs.Changed("aspect") {
		p.DefaultAspectRatio = domain.AspectRatio(f.aspect)
	}
	if fs.Changed("style") {
		p.DefaultArtStyle = domain.ArtStyle(f.style)
	}
	if fs.Changed("model") {
		p.DefaultModelType = domain.ModelType(f.model)
	}
	if fs.Changed("subject") {
		p.DefaultSubjectReference = f.subject
	}
}

var (
	overrideEpisode string
	overrideClear   bool
	overrideFlags   settingFlags
)

var overrideCmd = &cobra.Command{
	Use:   "override <shot-id>",
	Short: "ショット単位で生成設定を上書きするのだ。",
	Long: `指定したフラグだけがショットの上書きになり、それ以外はプロジェクト既定値を継承するのだ。
フラグを何も指定しなければ現在の実効設定を表示するのだよ。--clear で上書きをすべて外すのだ。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		episodeID := episodeOrCurrent(st, overrideEpisode)
		shot, err := st.Shot(episodeID, args[0])
		if err != nil {
			return err
		}

		switch {
		case overrideClear:
			if err := st.UpdateShotOverrides(episodeID, shot.ID, nil); err != nil {
				return err
			}
		case settingFlagsChanged(cmd):
			o := shot.OverrideSettings
			if o == nil {
				o = &domain.ShotSettings{}
			} else {
				c := o.Clone()
				o = &c
			}
			overrideFlags.applyOverride(cmd, o)
			if err := st.UpdateShotOverrides(episodeID, shot.ID, o); err != nil {
				return err
			}
		default:
			printEffective(cmd.OutOrStdout(), settings.Resolve(shot, st.Settings()))
			return nil
		}

		if err := saveStore(st); err != nil {
			return err
		}
		shot, err = st.Shot(episodeID, shot.ID)
		if err != nil {
			return err
		}
		printEffective(cmd.OutOrStdout(), settings.Resolve(shot, st.Settings()))
		return nil
	},
}

var settingsFlags settingFlags

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "プロジェクトの既定の生成設定を表示・変更するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		p := st.Settings()
		settingsFlags.applyProject(cmd, &p)

		if settingFlagsChanged(cmd) {
			if err := st.UpdateSettings(p); err != nil {
				return err
			}
			if err := saveStore(st); err != nil {
				return err
			}
		}

		p = st.Settings()
		printEffective(cmd.OutOrStdout(), settings.Effective{
			AspectRatio:      p.DefaultAspectRatio,
			ArtStyle:         p.DefaultArtStyle,
			ModelType:        p.DefaultModelType,
			SubjectReference: p.DefaultSubjectReference,
			StyleReference:   p.DefaultStyleReference,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "character library: %d/%d\n", len(p.CharacterLibrary), domain.MaxReferenceImages)
		return nil
	},
}

func settingFlagsChanged(cmd *cobra.Command) bool {
	fs := cmd.Flags()
	return fs.Changed("aspect") || fs.Changed("style") || fs.Changed("model") || fs.Changed("subject")
}

func printEffective(w io.Writer, eff settings.Effective) {
	subject := "(なし)"
	if eff.SubjectReference != "" {
		subject = shorten(eff.SubjectReference, 48)
	}
	fmt.Fprintf(w, "aspect:  %s\nstyle:   %s\nmodel:   %s\nsubject: %s\nstyles:  %d 件\n",
		eff.AspectRatio, eff.ArtStyle, eff.ModelType, subject, len(eff.StyleReference))
}

func init() {
	overrideCmd.Flags().StringVarP(&overrideEpisode, "episode", "e", "", "対象のエピソード ID なのだ。")
	overrideCmd.Flags().BoolVar(&overrideClear, "clear", false, "上書きをすべて外してプロジェクト既定値に戻すのだ。")
	overrideFlags.register(overrideCmd)
	settingsFlags.register(settingsCmd)
}
