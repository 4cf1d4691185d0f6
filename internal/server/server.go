// Package server はストーリーボードを HTTP API と WebSocket で公開します。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shouni/go-storyboard-kit/pkg/store"
	"github.com/shouni/go-storyboard-kit/pkg/workflow"
)

const (
	defaultSaveInterval = time.Second
	shutdownTimeout     = 10 * time.Second
)

// Options は Server の設定です。
type Options struct {
	// Gatherer は /metrics で公開するメトリクスです。nil の場合は /metrics を登録しません。
	Gatherer prometheus.Gatherer
	// Save は状態の永続化です。nil の場合は保存しません。
	Save         func() error
	SaveInterval time.Duration
	Logger       *slog.Logger
}

// Server は Manager の操作を HTTP で受け付けます。
type Server struct {
	mgr    *workflow.Manager
	store  *store.Store
	hub    *Hub
	opts   Options
	engine *gin.Engine
	logger *slog.Logger

	// リクエスト後も続く生成処理。停止時に完了を待つ
	jobs jobTracker
}

// New は Server を生成し、ルーティングを設定します。
func New(mgr *workflow.Manager, hub *Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = defaultSaveInterval
	}
	if hub == nil {
		hub = NewHub(logger)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		mgr:    mgr,
		store:  mgr.Store(),
		hub:    hub,
		opts:   opts,
		engine: gin.New(),
		logger: logger.With("component", "server"),
	}
	s.jobs.logger = s.logger
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

// Handler は HTTP ハンドラーを返します。
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ws", s.hub.ServeWS)
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/export", s.export)

	episodes := api.Group("/episodes")
	episodes.POST("", s.addEpisode)
	episodes.PUT("/current", s.setCurrentEpisode)
	episodes.GET("/:episodeID", s.getEpisode)
	episodes.PATCH("/:episodeID", s.updateEpisode)
	episodes.DELETE("/:episodeID", s.deleteEpisode)
	episodes.POST("/:episodeID/analyze", s.analyze)
	episodes.POST("/:episodeID/generate", s.generateEpisode)

	shots := episodes.Group("/:episodeID/shots/:shotID")
	shots.PATCH("", s.updateShot)
	shots.PUT("/overrides", s.updateOverrides)
	shots.POST("/generate", s.generateShot)
	shots.POST("/select", s.selectVariation)
	shots.POST("/edit", s.editShot)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.updateSettings)

	library := api.Group("/library")
	library.POST("/characters", s.addCharacter)
	library.DELETE("/characters/:refID", s.removeCharacter)
	library.POST("/styles", s.addStyle)
	library.DELETE("/styles/:refID", s.removeStyle)
}

// Run は addr で待ち受け、ctx が終了するとグレースフルに停止します。
// Hub の配信と状態の定期保存もこの間だけ動作します。
func (s *Server) Run(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe := s.store.SubscribeBuffered(256)
	defer unsubscribe()

	go s.hub.Run(ctx)
	go s.hub.Forward(ctx, events)

	saveEvents, unsubscribeSave := s.store.SubscribeBuffered(256)
	defer unsubscribeSave()
	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		s.persist(ctx, saveEvents)
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP サーバーを起動します", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("HTTP サーバーの起動に失敗しました: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP サーバーの停止に失敗しました", "error", err)
	}
	s.jobs.wait(shutdownCtx)

	cancel()
	<-persistDone
	return runErr
}

// persist は Store の変更を間引いて保存します。ctx の終了時に未保存の変更があれば最後に保存します。
func (s *Server) persist(ctx context.Context, events <-chan store.Event) {
	if s.opts.Save == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(s.opts.SaveInterval)
	defer ticker.Stop()

	dirty := false
	save := func() {
		if !dirty {
			return
		}
		if err := s.opts.Save(); err != nil {
			s.logger.Error("プロジェクトの保存に失敗しました", "error", err)
			return
		}
		dirty = false
	}

	for {
		select {
		case _, ok := <-events:
			if !ok {
				save()
				return
			}
			dirty = true
		case <-ticker.C:
			save()
		case <-ctx.Done():
			save()
			return
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/healthz" || c.FullPath() == "/metrics" {
			return
		}
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond))
	}
}
