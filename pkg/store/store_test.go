package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImage = "data:image/png;base64,iVBORw0KGgo="

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	var mu sync.Mutex
	n := 0
	ids := func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
	clock := func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	s, err := New(append([]Option{WithIDGenerator(ids), WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return s
}

func TestNew_DefaultState(t *testing.T) {
	s := newTestStore(t)

	eps := s.Episodes()
	require.Len(t, eps, 1)
	assert.Equal(t, DefaultEpisodeID, eps[0].ID)
	assert.Equal(t, "第一场：霓虹面馆", eps[0].Title)
	assert.Equal(t, DefaultScript, eps[0].ScriptContent)
	assert.Equal(t, DefaultEpisodeID, s.CurrentEpisodeID())
	assert.Equal(t, domain.DefaultProjectSettings(), s.Settings())
}

func TestNew_RejectsEmptyState(t *testing.T) {
	_, err := New(WithState(State{}))
	assert.Error(t, err)
}

func TestNew_NormalizesLoadedState(t *testing.T) {
	st := State{
		Episodes:         []domain.Episode{{ID: "a", Shots: []domain.Shot{{ID: "s", IsGenerating: true, Progress: 40}}}},
		CurrentEpisodeID: "missing",
		Settings:         domain.DefaultProjectSettings(),
	}
	s := newTestStore(t, WithState(st))

	assert.Equal(t, "a", s.CurrentEpisodeID())
	sh, err := s.Shot("a", "s")
	require.NoError(t, err)
	assert.False(t, sh.IsGenerating)
	assert.Zero(t, sh.Progress)
}

func TestStore_EpisodeLifecycle(t *testing.T) {
	s := newTestStore(t)

	id := s.AddEpisode()
	assert.Equal(t, id, s.CurrentEpisodeID())
	ep, err := s.Episode(id)
	require.NoError(t, err)
	assert.Equal(t, "新剧集 2", ep.Title)

	s.DeleteEpisode(id)
	assert.Equal(t, DefaultEpisodeID, s.CurrentEpisodeID())

	// 最後の 1 件は削除できない
	s.DeleteEpisode(DefaultEpisodeID)
	assert.Len(t, s.Episodes(), 1)

	_, err = s.Episode("nope")
	assert.ErrorIs(t, err, domain.ErrEpisodeNotFound)
}

func TestStore_ApplyAnalysisAssignsIDs(t *testing.T) {
	s := newTestStore(t)
	s.ApplyAnalysis(DefaultEpisodeID, []domain.ShotDraft{{SceneHeader: "A"}, {SceneHeader: "B"}}, nil)

	ep, err := s.Episode(DefaultEpisodeID)
	require.NoError(t, err)
	require.Len(t, ep.Shots, 2)
	assert.NotEqual(t, ep.Shots[0].ID, ep.Shots[1].ID)
	assert.NotEmpty(t, ep.Shots[0].ID)
	assert.NotNil(t, ep.LastAnalyzed)
	assert.NotNil(t, ep.Characters)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()
	snap.Episodes[0].Title = "mutated"
	assert.NotEqual(t, "mutated", s.Episodes()[0].Title)
}

func TestStore_ReferenceLibraryCap(t *testing.T) {
	s := newTestStore(t)

	for i := range domain.MaxReferenceImages {
		_, err := s.AddCharacterReference(domain.CharacterReference{Name: fmt.Sprintf("c%d", i), ImageURL: testImage})
		require.NoError(t, err)
	}
	_, err := s.AddCharacterReference(domain.CharacterReference{Name: "overflow", ImageURL: testImage})
	assert.ErrorIs(t, err, domain.ErrReferenceLimit)
	assert.Len(t, s.Settings().CharacterLibrary, domain.MaxReferenceImages)

	first := s.Settings().CharacterLibrary[0]
	s.RemoveCharacterReference(first.ID)
	assert.Len(t, s.Settings().CharacterLibrary, domain.MaxReferenceImages-1)

	ref, err := s.AddStyleReference(domain.StyleReference{Tag: "noir", ImageURL: testImage})
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	s.RemoveStyleReference(ref.ID)
	assert.Empty(t, s.Settings().DefaultStyleReference)
}

func TestStore_UpdateSettingsClampsLibraries(t *testing.T) {
	s := newTestStore(t)
	p := domain.DefaultProjectSettings()
	p.DefaultStyleReference = styleRefs(5)

	require.NoError(t, s.UpdateSettings(p))
	assert.Len(t, s.Settings().DefaultStyleReference, domain.MaxReferenceImages)

	p.DefaultModelType = "unknown"
	assert.ErrorIs(t, s.UpdateSettings(p), domain.ErrInvalidSettings)
}

func TestStore_UpdateShotOverridesClampsStyles(t *testing.T) {
	s := newTestStore(t)
	s.ApplyAnalysis(DefaultEpisodeID, []domain.ShotDraft{{}}, nil)
	shotID := s.Episodes()[0].Shots[0].ID

	refs := styleRefs(4)
	require.NoError(t, s.UpdateShotOverrides(DefaultEpisodeID, shotID, &domain.ShotSettings{StyleReference: &refs}))

	sh, err := s.Shot(DefaultEpisodeID, shotID)
	require.NoError(t, err)
	assert.Len(t, *sh.OverrideSettings.StyleReference, domain.MaxReferenceImages)
	assert.Len(t, refs, 4, "caller slice untouched")
}

func styleRefs(n int) []domain.StyleReference {
	refs := make([]domain.StyleReference, n)
	for i := range refs {
		refs[i] = domain.StyleReference{ID: fmt.Sprintf("style-%d", i), ImageURL: testImage}
	}
	return refs
}

func TestStore_RejectsUnsupportedReferenceImages(t *testing.T) {
	s := newTestStore(t)
	const remote = "https://example.com/ref.png"

	_, err := s.AddCharacterReference(domain.CharacterReference{Name: "凯", ImageURL: remote})
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)
	_, err = s.AddStyleReference(domain.StyleReference{Tag: "noir"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)

	p := domain.DefaultProjectSettings()
	p.DefaultStyleReference = []domain.StyleReference{{ID: "x", ImageURL: remote}}
	assert.ErrorIs(t, s.UpdateSettings(p), domain.ErrUnsupportedImage)

	s.ApplyAnalysis(DefaultEpisodeID, []domain.ShotDraft{{}}, nil)
	shotID := s.Episodes()[0].Shots[0].ID
	refs := []domain.StyleReference{{ID: "x", ImageURL: remote}}
	err = s.UpdateShotOverrides(DefaultEpisodeID, shotID, &domain.ShotSettings{StyleReference: &refs})
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)

	assert.Empty(t, s.Settings().CharacterLibrary)
	assert.Empty(t, s.Settings().DefaultStyleReference)
}

func TestNew_RepairsLoadedSettings(t *testing.T) {
	overrides := append(styleRefs(4), domain.StyleReference{ID: "remote", ImageURL: "https://example.com/s.png"})
	st := DefaultState()
	st.Settings.DefaultStyleReference = append([]domain.StyleReference{{ID: "remote", ImageURL: "https://example.com/s.png"}}, styleRefs(4)...)
	st.Settings.CharacterLibrary = make([]domain.CharacterReference, 5)
	st.Episodes[0].Shots = []domain.Shot{
		{ID: "idle", Progress: 40, ImageURL: "b.png", Variations: []string{"a.png"}},
		{ID: "blank", ImageURL: "", Variations: []string{"a.png"}},
		{ID: "styled", OverrideSettings: &domain.ShotSettings{StyleReference: &overrides}},
	}
	s := newTestStore(t, WithState(st))

	got := s.Settings()
	require.Len(t, got.DefaultStyleReference, domain.MaxReferenceImages)
	assert.Equal(t, "style-0", got.DefaultStyleReference[0].ID, "remote reference dropped before clamping")
	assert.Len(t, got.CharacterLibrary, domain.MaxReferenceImages)

	idle, err := s.Shot(DefaultEpisodeID, "idle")
	require.NoError(t, err)
	assert.Zero(t, idle.Progress)
	assert.Equal(t, "b.png", idle.ImageURL)
	assert.Equal(t, []string{"a.png", "b.png"}, idle.Variations)

	blank, err := s.Shot(DefaultEpisodeID, "blank")
	require.NoError(t, err)
	assert.Equal(t, "a.png", blank.ImageURL)

	styled, err := s.Shot(DefaultEpisodeID, "styled")
	require.NoError(t, err)
	assert.Len(t, *styled.OverrideSettings.StyleReference, domain.MaxReferenceImages)
	assert.Len(t, overrides, 5, "loaded state untouched")
}

func TestNew_RejectsInvalidLoadedSettings(t *testing.T) {
	st := DefaultState()
	st.Settings.DefaultArtStyle = "bogus"
	_, err := New(WithState(st))
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)

	st = DefaultState()
	st.Episodes[0].Shots = []domain.Shot{{ID: "s", OverrideSettings: &domain.ShotSettings{ModelType: domain.Ptr(domain.ModelType("nope"))}}}
	_, err = New(WithState(st))
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)
}

func TestStore_GenerationEpochGuard(t *testing.T) {
	s := newTestStore(t)
	s.ApplyAnalysis(DefaultEpisodeID, []domain.ShotDraft{{}}, nil)
	shotID := s.Episodes()[0].Shots[0].ID

	first, err := s.BeginGeneration(DefaultEpisodeID, shotID)
	require.NoError(t, err)
	assert.True(t, s.ReportProgress(DefaultEpisodeID, shotID, first, 50))

	second, err := s.BeginGeneration(DefaultEpisodeID, shotID)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	assert.False(t, s.ReportProgress(DefaultEpisodeID, shotID, first, 100))
	assert.False(t, s.FinishGeneration(DefaultEpisodeID, shotID, first, []string{"stale"}))

	sh, _ := s.Shot(DefaultEpisodeID, shotID)
	assert.True(t, sh.IsGenerating)
	assert.Equal(t, 0, sh.Progress)
	assert.Empty(t, sh.ImageURL)

	assert.False(t, s.ReportProgress(DefaultEpisodeID, shotID, second, -1), "progress never goes backwards")
	assert.True(t, s.FinishGeneration(DefaultEpisodeID, shotID, second, []string{"x", "y"}))
	sh, _ = s.Shot(DefaultEpisodeID, shotID)
	assert.Equal(t, "x", sh.ImageURL)
	assert.Equal(t, []string{"x", "y"}, sh.Variations)
	assert.Equal(t, 100, sh.Progress)
	assert.False(t, sh.IsGenerating)

	_, err = s.BeginGeneration(DefaultEpisodeID, "missing")
	assert.ErrorIs(t, err, domain.ErrShotNotFound)
}

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore(t)
	events, cancel := s.Subscribe()

	s.RenameEpisode(DefaultEpisodeID, "renamed")

	select {
	case ev := <-events:
		assert.Equal(t, EventEpisodesChanged, ev.Type)
		assert.Equal(t, DefaultEpisodeID, ev.EpisodeID)
	case <-time.After(time.Second):
		t.Fatal("イベントが配信されませんでした")
	}

	cancel()
	_, ok := <-events
	assert.False(t, ok, "cancel closes the channel")
	cancel()
}

func TestStore_ConcurrentWritesAreSerialized(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddEpisode()
		}()
	}
	wg.Wait()
	assert.Len(t, s.Episodes(), 21)
}
