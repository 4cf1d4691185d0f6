package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/matcher"
	"github.com/shouni/go-storyboard-kit/pkg/notify"
	"github.com/shouni/go-storyboard-kit/pkg/settings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// FailureMessage は全試行が失敗したときにユーザーへ表示するメッセージです。
const FailureMessage = "生成失败，请检查网络或 Key 设置。"

var errEmptyImage = errors.New("画像参照が空です")

// ShotStore は Orchestrator が必要とする Store の操作です。
type ShotStore interface {
	Shot(episodeID, shotID string) (domain.Shot, error)
	Settings() domain.ProjectSettings
	BeginGeneration(episodeID, shotID string) (uint64, error)
	ReportProgress(episodeID, shotID string, epoch uint64, progress int) bool
	FinishGeneration(episodeID, shotID string, epoch uint64, successes []string) bool
}

// Options は Orchestrator の動作設定です。
type Options struct {
	// RateInterval が正の場合、バッチ内の試行の開始をこの間隔に制限します。
	// リミッターはバッチごとに作られ、別のバッチの試行とは共有しません。
	RateInterval time.Duration
	// RateBurst はバッチの開始時に待たずに起動できる試行数です。
	RateBurst int
	// MaxBatchSize は 1 バッチの count の上限です。0 は config.MaxBatchSize です。
	MaxBatchSize int
	// MaxConcurrency が正の場合、同時に実行する試行数の上限です。0 はすべて同時に実行します。
	MaxConcurrency int
	Metrics        *Metrics
	Logger         *slog.Logger
}

// Orchestrator は 1 ショットに対する N 枚の並列生成を実行し、進捗と結果を Store に反映します。
type Orchestrator struct {
	store          ShotStore
	renderer       domain.ImageRenderer
	notifier       notify.Notifier
	rateInterval   time.Duration
	rateBurst      int
	maxBatchSize   int
	maxConcurrency int
	metrics        *Metrics
	logger         *slog.Logger
}

// NewOrchestrator は Orchestrator を初期化します。
func NewOrchestrator(st ShotStore, renderer domain.ImageRenderer, notifier notify.Notifier, opts Options) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("Store は必須です")
	}
	if renderer == nil {
		return nil, fmt.Errorf("ImageRenderer は必須です")
	}
	if notifier == nil {
		notifier = notify.SlogNotifier{Logger: opts.Logger}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxBatchSize := opts.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = config.MaxBatchSize
	}

	return &Orchestrator{
		store:          st,
		renderer:       renderer,
		notifier:       notifier,
		rateInterval:   opts.RateInterval,
		rateBurst:      max(opts.RateBurst, 1),
		maxBatchSize:   maxBatchSize,
		maxConcurrency: opts.MaxConcurrency,
		metrics:        opts.Metrics,
		logger:         logger,
	}, nil
}

// BuildRequest はショットとプロジェクト設定から生成リクエストを組み立てます。
// 被写体参照にはアクション記述とビジュアルプロンプトから検出したキャラクター情報が付加されます。
func BuildRequest(shot domain.Shot, project domain.ProjectSettings) domain.RenderRequest {
	eff := settings.Resolve(shot, project)
	subject := matcher.BuildAugmentedSubjectReference(
		shot.ActionDescription,
		shot.VisualPrompt,
		eff.SubjectReference,
		project.CharacterLibrary,
	)
	return domain.RenderRequest{
		Prompt:           shot.PromptText(),
		Style:            eff.ArtStyle,
		AspectRatio:      eff.AspectRatio,
		Model:            eff.ModelType,
		SubjectReference: subject,
		StyleReferences:  eff.StyleReference,
	}
}

// Generate はショットに対して count 回の生成を同時に実行します。
//
// 個々の試行の失敗はエラーとして返さず、結果から除外するだけです。
// 全試行が失敗した場合は通知を 1 度だけ送り、StatusFailed を返します。
// 戻り値の error は入力エラー (1 未満または上限を超える count、存在しないショット) のみで、
// その場合は Store を変更せず何も呼び出しません。
// 呼び出し元のコンテキストがキャンセルされても、開始済みの試行は最後まで実行されます。
func (o *Orchestrator) Generate(ctx context.Context, episodeID, shotID string, count int) (Outcome, error) {
	if count < 1 || count > o.maxBatchSize {
		return Outcome{}, fmt.Errorf("%w: %d (1〜%d)", domain.ErrInvalidCount, count, o.maxBatchSize)
	}
	shot, err := o.store.Shot(episodeID, shotID)
	if err != nil {
		return Outcome{}, err
	}
	req := BuildRequest(shot, o.store.Settings())

	epoch, err := o.store.BeginGeneration(episodeID, shotID)
	if err != nil {
		return Outcome{}, err
	}

	logger := o.logger.With("episode_id", episodeID, "shot_id", shotID, "epoch", epoch)
	logger.InfoContext(ctx, "バッチ生成を開始します",
		"count", count,
		"model", req.Model,
		"aspect_ratio", req.AspectRatio,
		"art_style", req.Style,
		"style_references", len(req.StyleReferences))

	startTime := time.Now()
	o.metrics.batchStarted()
	defer o.metrics.batchDone()

	out := Outcome{Requested: count}
	completed := 0
	superseded := false

	for res := range o.runAttempts(context.WithoutCancel(ctx), req, count) {
		completed++
		if res.err != nil {
			out.Errors = append(out.Errors, res.err)
			o.metrics.attempt(outcomeFailure)
			logger.Warn("生成試行が失敗しました", "attempt", res.index, "error", res.err)
		} else {
			out.Variations = append(out.Variations, res.url)
			o.metrics.attempt(outcomeSuccess)
			logger.Info("生成試行が完了しました", "attempt", res.index, "duration", res.duration.Round(time.Millisecond))
		}

		if superseded {
			continue
		}
		if !o.store.ReportProgress(episodeID, shotID, epoch, roundPercent(completed, count)) {
			superseded = true
			logger.Info("より新しい更新があるため、このバッチの進捗書き込みを停止します")
		}
	}

	out.Succeeded = len(out.Variations)
	out.Failed = len(out.Errors)
	out.Duration = time.Since(startTime)
	o.metrics.observe(out.Duration)

	if !o.store.FinishGeneration(episodeID, shotID, epoch, out.Variations) {
		out.Status = StatusSuperseded
		o.metrics.batch(out.Status)
		logger.Info("バッチ結果は破棄されました", "succeeded", out.Succeeded, "failed", out.Failed)
		return out, nil
	}

	if out.Succeeded == 0 {
		out.Status = StatusFailed
		o.metrics.batch(out.Status)
		logger.Error("すべての生成試行が失敗しました", "count", count, "duration", out.Duration.Round(time.Millisecond))
		o.notifier.Notify(ctx, notify.Notification{
			Level:     notify.LevelError,
			Kind:      notify.KindGeneration,
			EpisodeID: episodeID,
			ShotID:    shotID,
			Message:   FailureMessage,
			Err:       errors.Join(out.Errors...),
			Time:      time.Now(),
		})
		return out, nil
	}

	out.Status = StatusReady
	out.ImageURL = out.Variations[0]
	o.metrics.batch(out.Status)
	logger.Info("バッチ生成が完了しました",
		"succeeded", out.Succeeded,
		"failed", out.Failed,
		"duration", out.Duration.Round(time.Millisecond))
	return out, nil
}

// runAttempts は count 個の試行を起動し、完了順に結果を流すチャネルを返します。
// errgroup は全件の完了待ちにのみ使い、各試行は常に nil を返すため兄弟の試行を止めません。
func (o *Orchestrator) runAttempts(ctx context.Context, req domain.RenderRequest, count int) <-chan attemptResult {
	results := make(chan attemptResult, count)

	var limiter *rate.Limiter
	if o.rateInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(o.rateInterval), o.rateBurst)
	}

	var eg errgroup.Group
	if o.maxConcurrency > 0 {
		eg.SetLimit(o.maxConcurrency)
	}

	go func() {
		for i := range count {
			eg.Go(func() error {
				results <- o.attempt(ctx, limiter, req, i+1)
				return nil
			})
		}
		_ = eg.Wait()
		close(results)
	}()

	return results
}

func (o *Orchestrator) attempt(ctx context.Context, limiter *rate.Limiter, req domain.RenderRequest, index int) (res attemptResult) {
	res.index = index
	defer func() {
		if r := recover(); r != nil {
			res.url = ""
			res.err = &domain.RenderError{Model: string(req.Model), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			res.err = &domain.RenderError{Model: string(req.Model), Err: err}
			return res
		}
	}

	startTime := time.Now()
	url, err := o.renderer.Render(ctx, req)
	res.duration = time.Since(startTime)
	if err != nil {
		var rerr *domain.RenderError
		if !errors.As(err, &rerr) {
			err = &domain.RenderError{Model: string(req.Model), Err: err}
		}
		res.err = err
		return res
	}
	if url == "" {
		res.err = &domain.RenderError{Model: string(req.Model), Err: errEmptyImage}
		return res
	}
	res.url = url
	return res
}

// roundPercent は round(100*completed/total) を整数演算で求めます (0.5 は切り上げ)。
func roundPercent(completed, total int) int {
	return (200*completed + total) / (2 * total)
}
