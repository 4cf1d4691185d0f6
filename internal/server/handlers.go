package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

type episodeUpdateRequest struct {
	Title  *string `json:"title"`
	Script *string `json:"scriptContent"`
}

type currentEpisodeRequest struct {
	ID string `json:"id" binding:"required"`
}

type generateRequest struct {
	Count int `json:"count"`
}

type selectRequest struct {
	URL string `json:"url" binding:"required"`
}

type editRequest struct {
	Instruction string `json:"instruction"`
}

type overridesRequest struct {
	Override *domain.ShotSettings `json:"overrideSettings"`
}

type characterRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type styleRequest struct {
	Tag      string `json:"tag"`
	ImageURL string `json:"imageUrl"`
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

func (s *Server) getEpisode(c *gin.Context) {
	ep, err := s.store.Episode(c.Param("episodeID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (s *Server) addEpisode(c *gin.Context) {
	id := s.store.AddEpisode()
	ep, err := s.store.Episode(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ep)
}

func (s *Server) setCurrentEpisode(c *gin.Context) {
	var req currentEpisodeRequest
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.store.Episode(req.ID); err != nil {
		s.fail(c, err)
		return
	}
	s.store.SetCurrentEpisode(req.ID)
	c.JSON(http.StatusOK, gin.H{"currentEpisodeId": s.store.CurrentEpisodeID()})
}

func (s *Server) updateEpisode(c *gin.Context) {
	id := c.Param("episodeID")
	var req episodeUpdateRequest
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.store.Episode(id); err != nil {
		s.fail(c, err)
		return
	}
	if req.Title != nil {
		s.store.RenameEpisode(id, *req.Title)
	}
	if req.Script != nil {
		s.store.ReplaceScript(id, *req.Script)
	}
	s.getEpisode(c)
}

// deleteEpisode は最後の 1 件を削除しようとした場合も 200 を返します (状態は変わりません)。
func (s *Server) deleteEpisode(c *gin.Context) {
	s.store.DeleteEpisode(c.Param("episodeID"))
	c.JSON(http.StatusOK, gin.H{
		"episodes":         len(s.store.Episodes()),
		"currentEpisodeId": s.store.CurrentEpisodeID(),
	})
}

func (s *Server) analyze(c *gin.Context) {
	analysis, err := s.mgr.AnalyzeScript(c.Request.Context(), c.Param("episodeID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// generateShot は生成をバックグラウンドで開始し、202 を返します。進捗は WebSocket で配信されます。
func (s *Server) generateShot(c *gin.Context) {
	episodeID, shotID := c.Param("episodeID"), c.Param("shotID")
	req, ok := s.generateCount(c)
	if !ok {
		return
	}
	if _, err := s.store.Shot(episodeID, shotID); err != nil {
		s.fail(c, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	s.jobs.start(func() {
		if _, err := s.mgr.GenerateShot(ctx, episodeID, shotID, req.Count); err != nil {
			s.logger.Error("生成を開始できませんでした", "episode_id", episodeID, "shot_id", shotID, "error", err)
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"episodeId": episodeID, "shotId": shotID, "count": req.Count})
}

func (s *Server) generateEpisode(c *gin.Context) {
	episodeID := c.Param("episodeID")
	req, ok := s.generateCount(c)
	if !ok {
		return
	}
	ep, err := s.store.Episode(episodeID)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	s.jobs.start(func() {
		if _, err := s.mgr.GenerateEpisode(ctx, episodeID, req.Count); err != nil {
			s.logger.Error("エピソードの生成を開始できませんでした", "episode_id", episodeID, "error", err)
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"episodeId": episodeID, "shots": len(ep.Shots), "count": req.Count})
}

func (s *Server) generateCount(c *gin.Context) (generateRequest, bool) {
	var req generateRequest
	if c.Request.ContentLength != 0 {
		if !s.bind(c, &req) {
			return req, false
		}
	}
	if req.Count < 0 || req.Count > config.MaxBatchSize {
		s.fail(c, fmt.Errorf("%w: %d (0〜%d)", domain.ErrInvalidCount, req.Count, config.MaxBatchSize))
		return req, false
	}
	return req, true
}

func (s *Server) updateShot(c *gin.Context) {
	episodeID, shotID := c.Param("episodeID"), c.Param("shotID")
	var req domain.ShotUpdate
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.store.Shot(episodeID, shotID); err != nil {
		s.fail(c, err)
		return
	}
	s.store.UpdateShotField(episodeID, shotID, req)
	s.respondShot(c, episodeID, shotID)
}

func (s *Server) updateOverrides(c *gin.Context) {
	episodeID, shotID := c.Param("episodeID"), c.Param("shotID")
	var req overridesRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.mgr.UpdateShotOverrides(episodeID, shotID, req.Override); err != nil {
		s.fail(c, err)
		return
	}
	s.respondShot(c, episodeID, shotID)
}

func (s *Server) selectVariation(c *gin.Context) {
	episodeID, shotID := c.Param("episodeID"), c.Param("shotID")
	var req selectRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.mgr.SelectVariation(episodeID, shotID, req.URL); err != nil {
		s.fail(c, err)
		return
	}
	s.respondShot(c, episodeID, shotID)
}

func (s *Server) editShot(c *gin.Context) {
	episodeID, shotID := c.Param("episodeID"), c.Param("shotID")
	var req editRequest
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.mgr.EditShotImage(c.Request.Context(), episodeID, shotID, req.Instruction); err != nil {
		s.fail(c, err)
		return
	}
	s.respondShot(c, episodeID, shotID)
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Settings())
}

func (s *Server) updateSettings(c *gin.Context) {
	var req domain.ProjectSettings
	if !s.bind(c, &req) {
		return
	}
	if err := s.store.UpdateSettings(req); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.Settings())
}

func (s *Server) addCharacter(c *gin.Context) {
	var req characterRequest
	if !s.bind(c, &req) {
		return
	}
	ref, err := s.mgr.AddCharacterReference(c.Request.Context(), req.Name, req.ImageURL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

func (s *Server) removeCharacter(c *gin.Context) {
	s.store.RemoveCharacterReference(c.Param("refID"))
	c.Status(http.StatusNoContent)
}

func (s *Server) addStyle(c *gin.Context) {
	var req styleRequest
	if !s.bind(c, &req) {
		return
	}
	ref, err := s.mgr.AddStyleReference(c.Request.Context(), req.Tag, req.ImageURL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

func (s *Server) removeStyle(c *gin.Context) {
	s.store.RemoveStyleReference(c.Param("refID"))
	c.Status(http.StatusNoContent)
}

// export は zip を生成してから送信します。途中で失敗した場合に壊れた zip を返さないためです。
func (s *Server) export(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := s.mgr.Export(c.Request.Context(), &buf); err != nil {
		s.fail(c, err)
		return
	}
	name := asset.ExportFileName(time.Now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (s *Server) respondShot(c *gin.Context, episodeID, shotID string) {
	shot, err := s.store.Shot(episodeID, shotID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shot)
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストの形式が不正です", "detail": err.Error()})
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("リクエストの処理に失敗しました", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		analysisErr *domain.AnalysisError
		editErr     *domain.EditError
	)
	switch {
	case errors.Is(err, domain.ErrEpisodeNotFound), errors.Is(err, domain.ErrShotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyScript),
		errors.Is(err, domain.ErrEmptyInstruction),
		errors.Is(err, domain.ErrMissingImage),
		errors.Is(err, domain.ErrInvalidCount),
		errors.Is(err, domain.ErrUnsupportedImage),
		errors.Is(err, domain.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrReferenceLimit):
		return http.StatusConflict
	case errors.As(err, &analysisErr), errors.As(err, &editErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
