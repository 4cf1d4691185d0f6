package publisher

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// globalSettings は上書きのないショットのメタデータに書き出す値です。
const globalSettings = "Global"

// ExportResult はエクスポートで書き出したファイルの情報です。
type ExportResult struct {
	Episodes   int
	ImagePaths []string // zip 内の画像パス
	Skipped    int      // data URL 以外のため書き出さなかった画像の数
}

type episodeMetadata struct {
	Title      string                  `json:"title"`
	Characters []domain.CharacterDraft `json:"characters"`
	Shots      []shotMetadata          `json:"shots"`
}

type shotMetadata struct {
	ID          string `json:"id"`
	SceneHeader string `json:"sceneHeader"`
	Action      string `json:"action"`
	Camera      string `json:"camera"`
	Prompt      string `json:"prompt"`
	Settings    any    `json:"settings"`
}

// Archiver はエピソード一式を zip にまとめます。入力のエピソードは読み取るだけです。
type Archiver struct {
	logger *slog.Logger
}

// NewArchiver は Archiver を生成します。
func NewArchiver(logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{logger: logger}
}

// Archive は各エピソードを Episode_<n>_<title>/ フォルダに、脚本、メタデータ、
// data URL の画像を images/ 以下に書き出します。
func (a *Archiver) Archive(ctx context.Context, w io.Writer, episodes []domain.Episode) (ExportResult, error) {
	result := ExportResult{}
	zw := zip.NewWriter(w)

	for i, ep := range episodes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		folder := asset.EpisodeFolderName(i, ep.Title)

		if err := writeFile(zw, path.Join(folder, asset.DefaultScriptName), []byte(ep.ScriptContent)); err != nil {
			return result, err
		}

		meta, err := json.MarshalIndent(buildMetadata(ep), "", "  ")
		if err != nil {
			return result, fmt.Errorf("メタデータの生成に失敗しました (episode: %s): %w", ep.ID, err)
		}
		if err := writeFile(zw, path.Join(folder, asset.DefaultMetadataName), meta); err != nil {
			return result, err
		}

		for j, shot := range ep.Shots {
			if shot.ImageURL == "" {
				continue
			}
			if !asset.IsDataURL(shot.ImageURL) {
				result.Skipped++
				a.logger.Debug("data URL ではない画像はエクスポートしません", "episode_id", ep.ID, "shot_id", shot.ID)
				continue
			}
			img, err := asset.DecodeDataURL(shot.ImageURL)
			if err != nil {
				return result, fmt.Errorf("画像のデコードに失敗しました (shot: %s): %w", shot.ID, err)
			}
			name := path.Join(folder, asset.DefaultImageDir, asset.ShotImageName(j, shot.ID, asset.Extension(img.MimeType)))
			if err := writeFile(zw, name, img.Data); err != nil {
				return result, err
			}
			result.ImagePaths = append(result.ImagePaths, name)
		}
		result.Episodes++
	}

	if err := zw.Close(); err != nil {
		return result, fmt.Errorf("zip の書き込みに失敗しました: %w", err)
	}
	a.logger.Info("エクスポートが完了しました", "episodes", result.Episodes, "images", len(result.ImagePaths), "skipped", result.Skipped)
	return result, nil
}

func buildMetadata(ep domain.Episode) episodeMetadata {
	meta := episodeMetadata{
		Title:      ep.Title,
		Characters: ep.Characters,
		Shots:      make([]shotMetadata, 0, len(ep.Shots)),
	}
	if meta.Characters == nil {
		meta.Characters = []domain.CharacterDraft{}
	}
	for _, s := range ep.Shots {
		var settings any = globalSettings
		if s.OverrideSettings != nil {
			settings = s.OverrideSettings
		}
		meta.Shots = append(meta.Shots, shotMetadata{
			ID:          s.ID,
			SceneHeader: s.SceneHeader,
			Action:      s.ActionDescription,
			Camera:      s.CameraAngle,
			Prompt:      s.VisualPrompt,
			Settings:    settings,
		})
	}
	return meta
}

func writeFile(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip エントリの作成に失敗しました %s: %w", name, err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("zip エントリの書き込みに失敗しました %s: %w", name, err)
	}
	return nil
}
