package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/generator"
	"github.com/shouni/go-storyboard-kit/pkg/notify"
	"github.com/shouni/go-storyboard-kit/pkg/publisher"
	"github.com/shouni/go-storyboard-kit/pkg/settings"
	"github.com/shouni/go-storyboard-kit/pkg/store"
	"golang.org/x/sync/errgroup"
)

// ManagerArgs は Manager の依存関係です。Archiver と Notifier は省略できます。
type ManagerArgs struct {
	Config    config.Config
	Store     *store.Store
	Analyzer  domain.ScriptAnalyzer
	Renderer  domain.ImageRenderer
	Editor    domain.ImageEditor
	Describer domain.ImageAnalyzer
	Archiver  *publisher.Archiver
	Notifier  notify.Notifier
	Metrics   *generator.Metrics
	Logger    *slog.Logger
}

// Manager は Store と各コラボレーターを束ね、ユーザー操作を 1 つずつ実行します。
type Manager struct {
	cfg          config.Config
	store        *store.Store
	analyzer     domain.ScriptAnalyzer
	editor       domain.ImageEditor
	describer    domain.ImageAnalyzer
	archiver     *publisher.Archiver
	notifier     notify.Notifier
	orchestrator *generator.Orchestrator
	logger       *slog.Logger
}

// New は依存関係を検証して Manager を初期化します。
func New(args ManagerArgs) (*Manager, error) {
	if args.Store == nil {
		return nil, fmt.Errorf("Store は必須です")
	}
	if args.Analyzer == nil {
		return nil, fmt.Errorf("ScriptAnalyzer は必須です")
	}
	if args.Editor == nil {
		return nil, fmt.Errorf("ImageEditor は必須です")
	}
	if args.Describer == nil {
		return nil, fmt.Errorf("ImageAnalyzer は必須です")
	}

	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := args.Notifier
	if notifier == nil {
		notifier = notify.SlogNotifier{Logger: logger}
	}
	archiver := args.Archiver
	if archiver == nil {
		archiver = publisher.NewArchiver(logger)
	}

	orch, err := generator.NewOrchestrator(args.Store, args.Renderer, notifier, generator.Options{
		RateInterval:   args.Config.RateInterval,
		RateBurst:      args.Config.RateBurst,
		MaxConcurrency: args.Config.MaxConcurrency,
		Metrics:        args.Metrics,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("Orchestrator の初期化に失敗しました: %w", err)
	}

	return &Manager{
		cfg:          args.Config,
		store:        args.Store,
		analyzer:     args.Analyzer,
		editor:       args.Editor,
		describer:    args.Describer,
		archiver:     archiver,
		notifier:     notifier,
		orchestrator: orch,
		logger:       logger,
	}, nil
}

// Store は Manager が操作している Store を返します。
func (m *Manager) Store() *store.Store { return m.store }

// AnalyzeScript はエピソードの脚本を解析し、ショットと登場人物を置き換えます。
// 失敗した場合、エピソードは変更されません。
func (m *Manager) AnalyzeScript(ctx context.Context, episodeID string) (domain.Analysis, error) {
	ep, err := m.store.Episode(episodeID)
	if err != nil {
		return domain.Analysis{}, err
	}
	if strings.TrimSpace(ep.ScriptContent) == "" {
		m.notifyInput(ctx, episodeID, "", MsgEmptyScript, domain.ErrEmptyScript)
		return domain.Analysis{}, &domain.AnalysisError{Op: "script", Err: domain.ErrEmptyScript}
	}

	logger := m.logger.With("episode_id", episodeID)
	start := time.Now()
	analysis, err := m.analyzer.Analyze(ctx, ep.ScriptContent)
	if err != nil {
		logger.ErrorContext(ctx, "脚本解析に失敗しました", "error", err)
		m.notify(ctx, notify.Notification{
			Level:     notify.LevelError,
			Kind:      notify.KindAnalysis,
			EpisodeID: episodeID,
			Message:   MsgAnalysisFailed,
			Err:       err,
		})
		return domain.Analysis{}, err
	}

	m.store.ApplyAnalysis(episodeID, analysis.Shots, analysis.Characters)
	logger.InfoContext(ctx, "脚本解析が完了しました",
		"shots", len(analysis.Shots),
		"duration", time.Since(start).Round(time.Millisecond))
	return analysis, nil
}

// GenerateShot は 1 ショットに count 枚の画像を生成します。
// count が 0 の場合は既定の枚数で、負の値や上限を超える値は ErrInvalidCount です。
func (m *Manager) GenerateShot(ctx context.Context, episodeID, shotID string, count int) (generator.Outcome, error) {
	if count == 0 {
		count = min(max(m.cfg.BatchSize, 1), config.MaxBatchSize)
	}
	return m.orchestrator.Generate(ctx, episodeID, shotID, count)
}

// GenerateEpisode はエピソード内の全ショットを生成します。
// 同時に処理するショット数は EpisodeParallels で制限され、ショット単位の失敗は Outcome に記録されます。
func (m *Manager) GenerateEpisode(ctx context.Context, episodeID string, count int) ([]generator.Outcome, error) {
	ep, err := m.store.Episode(episodeID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]generator.Outcome, len(ep.Shots))
	eg, egCtx := errgroup.WithContext(ctx)
	if m.cfg.EpisodeParallels > 0 {
		eg.SetLimit(m.cfg.EpisodeParallels)
	}
	for i, shot := range ep.Shots {
		eg.Go(func() error {
			out, err := m.GenerateShot(egCtx, episodeID, shot.ID, count)
			if err != nil {
				return fmt.Errorf("ショット %s の生成を開始できませんでした: %w", shot.ID, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// SelectVariation は表示画像を切り替えます。バリエーションに含まれない URL は無視されます。
func (m *Manager) SelectVariation(episodeID, shotID, url string) error {
	if _, err := m.store.Shot(episodeID, shotID); err != nil {
		return err
	}
	m.store.SelectVariation(episodeID, shotID, url)
	return nil
}

// EditShotImage は現在の表示画像を指示に従って編集し、結果を表示画像にします。
func (m *Manager) EditShotImage(ctx context.Context, episodeID, shotID, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		m.notifyInput(ctx, episodeID, shotID, MsgEmptyInstruction, domain.ErrEmptyInstruction)
		return "", &domain.EditError{Err: domain.ErrEmptyInstruction}
	}
	shot, err := m.store.Shot(episodeID, shotID)
	if err != nil {
		return "", err
	}
	if shot.ImageURL == "" {
		m.notifyInput(ctx, episodeID, shotID, MsgMissingImage, domain.ErrMissingImage)
		return "", &domain.EditError{Err: domain.ErrMissingImage}
	}

	edited, err := m.editor.Edit(ctx, shot.ImageURL, instruction)
	if err != nil {
		m.logger.ErrorContext(ctx, "画像編集に失敗しました", "episode_id", episodeID, "shot_id", shotID, "error", err)
		m.notify(ctx, notify.Notification{
			Level:     notify.LevelError,
			Kind:      notify.KindEdit,
			EpisodeID: episodeID,
			ShotID:    shotID,
			Message:   MsgEditFailed,
			Err:       err,
		})
		return "", err
	}

	m.store.UpdateShotField(episodeID, shotID, domain.ShotUpdate{ImageURL: &edited})
	return edited, nil
}

// UpdateShotOverrides はショットの上書き設定を置き換えます。nil は上書きの解除です。
func (m *Manager) UpdateShotOverrides(episodeID, shotID string, o *domain.ShotSettings) error {
	if _, err := m.store.Shot(episodeID, shotID); err != nil {
		return err
	}
	return m.store.UpdateShotOverrides(episodeID, shotID, o)
}

// EnableShotOverrides は現在のプロジェクト設定を写した上書きを作成します。
func (m *Manager) EnableShotOverrides(episodeID, shotID string) error {
	return m.UpdateShotOverrides(episodeID, shotID, settings.SeedOverrides(m.store.Settings()))
}

// AddCharacterReference は画像から特徴を抽出し、キャラクターライブラリに追加します。
// 上限に達している場合や画像が data URL でない場合は画像解析を行いません。
func (m *Manager) AddCharacterReference(ctx context.Context, name, imageRef string) (domain.CharacterReference, error) {
	if !settings.CanAdd(len(m.store.Settings().CharacterLibrary)) {
		m.notifyLimit(ctx)
		return domain.CharacterReference{}, domain.ErrReferenceLimit
	}
	if strings.TrimSpace(imageRef) == "" {
		m.notifyInput(ctx, "", "", MsgMissingImage, domain.ErrMissingImage)
		return domain.CharacterReference{}, domain.ErrMissingImage
	}
	if err := settings.ValidateImageRef(imageRef); err != nil {
		m.notifyInput(ctx, "", "", MsgUnsupportedImage, err)
		return domain.CharacterReference{}, err
	}

	desc, err := m.describer.Describe(ctx, imageRef, domain.DescribeSubject)
	if err != nil {
		m.notifyReferenceFailure(ctx, err)
		return domain.CharacterReference{}, err
	}

	ref, err := m.store.AddCharacterReference(domain.CharacterReference{
		Name:        strings.TrimSpace(name),
		Description: desc,
		ImageURL:    imageRef,
	})
	if err != nil {
		m.notifyLimit(ctx)
		return domain.CharacterReference{}, err
	}
	return ref, nil
}

// AddStyleReference はプロジェクト既定のスタイル参照を追加します。tag が空の場合は画像から生成します。
func (m *Manager) AddStyleReference(ctx context.Context, tag, imageRef string) (domain.StyleReference, error) {
	if !settings.CanAdd(len(m.store.Settings().DefaultStyleReference)) {
		m.notifyLimit(ctx)
		return domain.StyleReference{}, domain.ErrReferenceLimit
	}
	if strings.TrimSpace(imageRef) == "" {
		m.notifyInput(ctx, "", "", MsgMissingImage, domain.ErrMissingImage)
		return domain.StyleReference{}, domain.ErrMissingImage
	}
	if err := settings.ValidateImageRef(imageRef); err != nil {
		m.notifyInput(ctx, "", "", MsgUnsupportedImage, err)
		return domain.StyleReference{}, err
	}

	tag = strings.TrimSpace(tag)
	if tag == "" {
		desc, err := m.describer.Describe(ctx, imageRef, domain.DescribeStyle)
		if err != nil {
			m.notifyReferenceFailure(ctx, err)
			return domain.StyleReference{}, err
		}
		tag = desc
	}

	ref, err := m.store.AddStyleReference(domain.StyleReference{Tag: tag, ImageURL: imageRef})
	if err != nil {
		m.notifyLimit(ctx)
		return domain.StyleReference{}, err
	}
	return ref, nil
}

// Export は全エピソードを zip として w に書き出します。
func (m *Manager) Export(ctx context.Context, w io.Writer) (publisher.ExportResult, error) {
	res, err := m.archiver.Archive(ctx, w, m.store.Episodes())
	if err != nil {
		m.notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Kind:    notify.KindInput,
			Message: MsgExportFailed,
			Err:     err,
		})
		return res, fmt.Errorf("エクスポートに失敗しました: %w", err)
	}
	return res, nil
}

// notifyInput は呼び出し前に弾いた入力エラーを通知します。
func (m *Manager) notifyInput(ctx context.Context, episodeID, shotID, msg string, err error) {
	m.notify(ctx, notify.Notification{
		Level:     notify.LevelError,
		Kind:      notify.KindInput,
		EpisodeID: episodeID,
		ShotID:    shotID,
		Message:   msg,
		Err:       err,
	})
}

func (m *Manager) notifyLimit(ctx context.Context) {
	m.notify(ctx, notify.Notification{Level: notify.LevelInfo, Kind: notify.KindReference, Message: MsgReferenceLimit})
}

func (m *Manager) notifyReferenceFailure(ctx context.Context, err error) {
	m.notify(ctx, notify.Notification{Level: notify.LevelError, Kind: notify.KindReference, Message: MsgReferenceFailed, Err: err})
}

func (m *Manager) notify(ctx context.Context, n notify.Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	m.notifier.Notify(ctx, n)
}
