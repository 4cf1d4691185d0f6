package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/shouni/go-storyboard-kit/internal/builder"
	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/notify"
	"github.com/shouni/go-storyboard-kit/pkg/project"
	"github.com/shouni/go-storyboard-kit/pkg/store"
)

// openStore は AI を使わないコマンド用に、プロジェクトファイルから Store を開くのだ。
func openStore() (*store.Store, error) {
	st, err := project.Open(cfg.ProjectFile, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("プロジェクトを開けなかったのだ: %w", err)
	}
	return st, nil
}

func saveStore(st *store.Store) error {
	if err := project.Save(cfg.ProjectFile, st.Snapshot()); err != nil {
		return fmt.Errorf("プロジェクトを保存できなかったのだ: %w", err)
	}
	return nil
}

// buildApp は Gemini のクライアントを含む AppContext を構築するのだ。
func buildApp(ctx context.Context, extra ...notify.Notifier) (*builder.AppContext, error) {
	return builder.BuildAppContext(ctx, cfg, logger, extra...)
}

func episodeOrCurrent(st *store.Store, id string) string {
	if id != "" {
		return id
	}
	return st.CurrentEpisodeID()
}

// readImageRef はローカルファイルを data URL に変換するのだ。URL や data URL はそのまま返すので、URL は登録時に拒否されるのだよ。
func readImageRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || asset.IsDataURL(ref) || strings.Contains(ref, "://") {
		return ref, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("画像ファイルを読み込めなかったのだ: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref)))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}
	return asset.EncodeDataURL(data, mimeType), nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
