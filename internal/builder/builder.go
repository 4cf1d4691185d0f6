package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shouni/go-storyboard-kit/internal/config"
	"github.com/shouni/go-storyboard-kit/pkg/adapters"
	pkgconfig "github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/generator"
	"github.com/shouni/go-storyboard-kit/pkg/notify"
	"github.com/shouni/go-storyboard-kit/pkg/project"
	"github.com/shouni/go-storyboard-kit/pkg/prompts"
	"github.com/shouni/go-storyboard-kit/pkg/publisher"
	"github.com/shouni/go-storyboard-kit/pkg/runner"
	"github.com/shouni/go-storyboard-kit/pkg/store"
	"github.com/shouni/go-storyboard-kit/pkg/workflow"
)

// Collaborators は Manager に渡す外部サービスの実装です。
type Collaborators struct {
	Analyzer  domain.ScriptAnalyzer
	Renderer  domain.ImageRenderer
	Editor    domain.ImageEditor
	Describer domain.ImageAnalyzer
}

// BuildAppContext はプロジェクトファイルを読み込み、Gemini の各クライアントを初期化して AppContext を構築します。
// extra の Notifier にはログ出力に加えて通知が配信されます。
func BuildAppContext(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...notify.Notifier) (*AppContext, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("環境変数 GEMINI_API_KEY が設定されていません")
	}
	collab, err := BuildGeminiCollaborators(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return BuildWithCollaborators(cfg, logger, collab, extra...)
}

// BuildWithCollaborators は与えられた実装で AppContext を構築します。
func BuildWithCollaborators(cfg config.Config, logger *slog.Logger, collab Collaborators, extra ...notify.Notifier) (*AppContext, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := project.Open(cfg.ProjectFile, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの読み込みに失敗しました: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifiers := append([]notify.Notifier{notify.SlogNotifier{Logger: logger}}, extra...)
	mgr, err := workflow.New(workflow.ManagerArgs{
		Config:    cfg.Config,
		Store:     st,
		Analyzer:  collab.Analyzer,
		Renderer:  collab.Renderer,
		Editor:    collab.Editor,
		Describer: collab.Describer,
		Archiver:  publisher.NewArchiver(logger),
		Notifier:  notify.Multi(notifiers...),
		Metrics:   generator.NewMetrics(registry),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("ワークフローの初期化に失敗しました: %w", err)
	}

	return &AppContext{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Manager:  mgr,
		Registry: registry,
	}, nil
}

// BuildGeminiCollaborators は Gemini API を使う実装一式を初期化します。
func BuildGeminiCollaborators(ctx context.Context, cfg config.Config, logger *slog.Logger) (Collaborators, error) {
	aiClient, err := adapters.InitializeAIClient(ctx, cfg.GeminiAPIKey, pkgconfig.DefaultTextTemperature)
	if err != nil {
		return Collaborators{}, err
	}
	contentGen, err := adapters.NewContentGenerator(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return Collaborators{}, fmt.Errorf("画像生成クライアントの初期化に失敗しました: %w", err)
	}

	pb, err := prompts.NewTextPromptBuilder()
	if err != nil {
		return Collaborators{}, fmt.Errorf("TextPromptBuilder の新規作成に失敗しました: %w", err)
	}

	return Collaborators{
		Analyzer:  runner.NewScriptRunner(cfg.GeminiModel, pb, adapters.NewTextAdapter(aiClient), newCache(cfg)),
		Renderer:  adapters.NewRenderer(contentGen, cfg.Config, prompts.NewImagePromptBuilder(cfg.StyleSuffix), logger),
		Editor:    adapters.NewEditor(contentGen, cfg.Config, logger),
		Describer: adapters.NewDescriber(contentGen, cfg.Config, newCache(cfg), logger),
	}, nil
}

func newCache(cfg config.Config) *cache.Cache {
	if cfg.CacheTTL <= 0 {
		return nil
	}
	return cache.New(cfg.CacheTTL, pkgconfig.DefaultCacheCleanup)
}
