package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/publisher"
)

// ExportRunner は Archiver を使ってローカルディスクに zip を書き出します。
type ExportRunner struct {
	archiver *publisher.Archiver
	now      func() time.Time
}

// NewExportRunner は ExportRunner を生成します。
func NewExportRunner(archiver *publisher.Archiver) *ExportRunner {
	return &ExportRunner{archiver: archiver, now: time.Now}
}

// Run は outputDir に Aim_Project_Export_<ms>.zip を作成し、そのパスを返します。
// outputPath が .zip で終わる場合はそのファイル名をそのまま使います。
func (er *ExportRunner) Run(ctx context.Context, episodes []domain.Episode, outputPath string) (string, publisher.ExportResult, error) {
	target := outputPath
	if filepath.Ext(outputPath) != ".zip" {
		resolved, err := asset.ResolveOutputPath(outputPath, asset.ExportFileName(er.now()))
		if err != nil {
			return "", publisher.ExportResult{}, fmt.Errorf("出力パスの解決に失敗しました: %w", err)
		}
		target = resolved
	}

	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", publisher.ExportResult{}, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
		}
	}

	f, err := os.Create(target)
	if err != nil {
		return "", publisher.ExportResult{}, fmt.Errorf("出力ファイルの作成に失敗しました: %w", err)
	}

	res, err := er.archiver.Archive(ctx, f, episodes)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("出力ファイルのクローズに失敗しました: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(target)
		return "", res, err
	}

	slog.InfoContext(ctx, "ExportRunner: zip を書き出しました", "path", target)
	return target, res, nil
}
