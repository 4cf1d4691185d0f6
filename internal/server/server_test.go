package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/generator"
	"github.com/shouni/go-storyboard-kit/pkg/notify"
	"github.com/shouni/go-storyboard-kit/pkg/store"
	"github.com/shouni/go-storyboard-kit/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImage = "data:image/png;base64,iVBORw0KGgo="

type fakes struct {
	renders atomic.Int32
}

func (f *fakes) Analyze(ctx context.Context, script string) (domain.Analysis, error) {
	return domain.Analysis{Shots: []domain.ShotDraft{{ActionDescription: "凯看了一眼手表", VisualPrompt: "watch"}}}, nil
}

func (f *fakes) Render(ctx context.Context, req domain.RenderRequest) (string, error) {
	i := f.renders.Add(1)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "img%d", i)), nil
}

func (f *fakes) Edit(ctx context.Context, imageRef, instruction string) (string, error) {
	return "data:image/png;base64,ZWRpdGVk", nil
}

func (f *fakes) Describe(ctx context.Context, imageRef string, kind domain.DescribeKind) (string, error) {
	return "described", nil
}

type testServer struct {
	srv *Server
	st  *store.Store
	hub *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.New()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.RateInterval = 0
	f := &fakes{}
	reg := prometheus.NewRegistry()
	hub := NewHub(nil)

	mgr, err := workflow.New(workflow.ManagerArgs{
		Config:    cfg,
		Store:     st,
		Analyzer:  f,
		Renderer:  f,
		Editor:    f,
		Describer: f,
		Notifier:  notify.Multi(hub),
		Metrics:   generator.NewMetrics(reg),
	})
	require.NoError(t, err)

	return &testServer{srv: New(mgr, hub, Options{Gatherer: reg}), st: st, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) analyzedShot(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/episodes/"+store.DefaultEpisodeID+"/analyze", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ep, err := ts.st.Episode(store.DefaultEpisodeID)
	require.NoError(t, err)
	return ep.Shots[0].ID
}

func (ts *testServer) waitJobs(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.True(t, ts.srv.jobs.wait(ctx))
}

func TestEpisodeRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("deleting the last episode is a no-op", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, "/api/episodes/"+store.DefaultEpisodeID, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, ts.st.Episodes(), 1)
	})

	t.Run("add, rename and switch", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/episodes", nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		var ep domain.Episode
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ep))

		rec = ts.do(t, http.MethodPatch, "/api/episodes/"+ep.ID, map[string]any{"title": "第二场"})
		require.Equal(t, http.StatusOK, rec.Code)
		got, _ := ts.st.Episode(ep.ID)
		assert.Equal(t, "第二场", got.Title)

		rec = ts.do(t, http.MethodPut, "/api/episodes/current", map[string]string{"id": store.DefaultEpisodeID})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, store.DefaultEpisodeID, ts.st.CurrentEpisodeID())
	})

	t.Run("unknown episode", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/episodes/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGenerateAndSelect(t *testing.T) {
	ts := newTestServer(t)
	shotID := ts.analyzedShot(t)
	base := "/api/episodes/" + store.DefaultEpisodeID + "/shots/" + shotID

	rec := ts.do(t, http.MethodPost, base+"/generate", map[string]int{"count": 3})
	require.Equal(t, http.StatusAccepted, rec.Code)
	ts.waitJobs(t)

	shot, err := ts.st.Shot(store.DefaultEpisodeID, shotID)
	require.NoError(t, err)
	require.Len(t, shot.Variations, 3)
	assert.Equal(t, 100, shot.Progress)

	rec = ts.do(t, http.MethodPost, base+"/select", map[string]string{"url": shot.Variations[2]})
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := ts.st.Shot(store.DefaultEpisodeID, shotID)
	assert.Equal(t, shot.Variations[2], got.ImageURL)

	rec = ts.do(t, http.MethodPost, base+"/select", map[string]string{"url": "https://elsewhere/x.png"})
	require.Equal(t, http.StatusOK, rec.Code)
	after, _ := ts.st.Shot(store.DefaultEpisodeID, shotID)
	assert.Equal(t, got.ImageURL, after.ImageURL)

	rec = ts.do(t, http.MethodPost, base+"/generate", map[string]int{"count": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_RejectsOversizedCount(t *testing.T) {
	ts := newTestServer(t)
	shotID := ts.analyzedShot(t)

	for _, path := range []string{
		"/api/episodes/" + store.DefaultEpisodeID + "/shots/" + shotID + "/generate",
		"/api/episodes/" + store.DefaultEpisodeID + "/generate",
	} {
		for _, count := range []int{config.MaxBatchSize + 1, 1 << 50} {
			rec := ts.do(t, http.MethodPost, path, map[string]int{"count": count})
			assert.Equal(t, http.StatusBadRequest, rec.Code, "%s count=%d", path, count)
		}
	}
	ts.waitJobs(t)

	shot, err := ts.st.Shot(store.DefaultEpisodeID, shotID)
	require.NoError(t, err)
	assert.False(t, shot.IsGenerating)
	assert.Empty(t, shot.Variations)
}

func TestJobTracker_RecoversPanics(t *testing.T) {
	var j jobTracker
	var ran atomic.Bool
	j.start(func() { panic("boom") })
	j.start(func() { ran.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.True(t, j.wait(ctx))
	assert.True(t, ran.Load())
}

func TestEditRoute(t *testing.T) {
	ts := newTestServer(t)
	shotID := ts.analyzedShot(t)
	base := "/api/episodes/" + store.DefaultEpisodeID + "/shots/" + shotID

	rec := ts.do(t, http.MethodPost, base+"/edit", map[string]string{"instruction": "add rain"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "画像がないショットは編集できません")

	rec = ts.do(t, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	ts.waitJobs(t)

	rec = ts.do(t, http.MethodPost, base+"/edit", map[string]string{"instruction": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/edit", map[string]string{"instruction": "add rain"})
	require.Equal(t, http.StatusOK, rec.Code)
	var shot domain.Shot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shot))
	assert.Equal(t, "data:image/png;base64,ZWRpdGVk", shot.ImageURL)
}

func TestOverridesRoute(t *testing.T) {
	ts := newTestServer(t)
	shotID := ts.analyzedShot(t)
	base := "/api/episodes/" + store.DefaultEpisodeID + "/shots/" + shotID

	rec := ts.do(t, http.MethodPut, base+"/overrides", map[string]any{
		"overrideSettings": map[string]any{"artStyle": "anime", "subjectReference": ""},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shot, _ := ts.st.Shot(store.DefaultEpisodeID, shotID)
	require.NotNil(t, shot.OverrideSettings.SubjectReference)
	assert.Equal(t, "", *shot.OverrideSettings.SubjectReference)

	rec = ts.do(t, http.MethodPut, base+"/overrides", map[string]any{
		"overrideSettings": map[string]any{"artStyle": "oil-painting"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLibraryRoutes(t *testing.T) {
	ts := newTestServer(t)
	for i := range domain.MaxReferenceImages {
		rec := ts.do(t, http.MethodPost, "/api/library/styles", map[string]string{"tag": fmt.Sprint(i), "imageUrl": testImage})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := ts.do(t, http.MethodPost, "/api/library/styles", map[string]string{"imageUrl": testImage})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/library/characters", map[string]string{"name": "凯", "imageUrl": "https://example.com/kai.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/library/characters", map[string]string{"name": "凯", "imageUrl": testImage})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ref domain.CharacterReference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	assert.Equal(t, "described", ref.Description)

	rec = ts.do(t, http.MethodDelete, "/api/library/characters/"+ref.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, ts.st.Settings().CharacterLibrary)
}

func TestExportAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Aim_Project_Export_")

	shotID := ts.analyzedShot(t)
	rec = ts.do(t, http.MethodPost, "/api/episodes/"+store.DefaultEpisodeID+"/shots/"+shotID+"/generate", map[string]int{"count": 1})
	require.Equal(t, http.StatusAccepted, rec.Code)
	ts.waitJobs(t)

	rec = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storyboard_render_attempts_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", domain.ErrShotNotFound)))
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrReferenceLimit))
	assert.Equal(t, http.StatusBadGateway, statusFor(&domain.EditError{Err: assert.AnError}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestHub_ForwardPublishesStoreEvents(t *testing.T) {
	hub := NewHub(nil)
	events := make(chan store.Event, 1)
	events <- store.Event{Type: store.EventProgress, EpisodeID: "ep-1", ShotID: "shot-1"}
	close(events)

	hub.Forward(context.Background(), events)

	var msg Message
	require.NoError(t, json.Unmarshal(<-hub.broadcast, &msg))
	assert.Equal(t, string(store.EventProgress), msg.Type)
	assert.Equal(t, "shot-1", msg.ShotID)
}

func TestHub_WebSocketDelivery(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.hub.Run(ctx)

	wsSrv := httptest.NewServer(ts.srv.Handler())
	defer wsSrv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(wsSrv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// 登録は非同期のため、受信できるまで通知を送り続ける
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ts.hub.Notify(context.Background(), notify.Notification{Level: notify.LevelError, Message: generator.FailureMessage})
			case <-stop:
				return
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeNotification, msg.Type)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, generator.FailureMessage, msg.Notification.Message)
}
