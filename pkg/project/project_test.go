package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, store.DefaultState(), st)
}

func TestSaveAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storyboard.yaml")

	analyzed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	st := store.DefaultState()
	st.Episodes[0].LastAnalyzed = &analyzed
	st.Episodes[0].Shots = []domain.Shot{{
		ID:                "shot-1",
		ActionDescription: "凯看了一眼手表",
		ImageURL:          "https://example.com/1.png",
		Variations:        []string{"https://example.com/1.png"},
		IsGenerating:      true,
		Progress:          50,
		OverrideSettings: &domain.ShotSettings{
			AspectRatio:      domain.Ptr(domain.AspectSquare),
			SubjectReference: domain.Ptr(""),
		},
	}}
	st.Settings.CharacterLibrary = []domain.CharacterReference{{ID: "char-1", Name: "凯", Description: "机械臂"}}

	require.NoError(t, Save(path, st))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")

	s, err := Open(path)
	require.NoError(t, err)
	shot, err := s.Shot(store.DefaultEpisodeID, "shot-1")
	require.NoError(t, err)

	t.Run("explicit empty override survives", func(t *testing.T) {
		require.NotNil(t, shot.OverrideSettings.SubjectReference)
		assert.Equal(t, "", *shot.OverrideSettings.SubjectReference)
		assert.Nil(t, shot.OverrideSettings.ArtStyle)
	})

	t.Run("in-flight generation is reset", func(t *testing.T) {
		assert.False(t, shot.IsGenerating)
		assert.Zero(t, shot.Progress)
	})

	ep, err := s.Episode(store.DefaultEpisodeID)
	require.NoError(t, err)
	require.NotNil(t, ep.LastAnalyzed)
	assert.True(t, analyzed.Equal(*ep.LastAnalyzed))
	assert.Equal(t, "凯", s.Settings().CharacterLibrary[0].Name)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte("version: 99\n"))
	assert.Error(t, err)

	_, err = Decode([]byte("episodes: [unterminated"))
	assert.Error(t, err)
}

func TestOpen_RejectsEmptyProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nepisodes: []\n"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

const repairableProject = `version: 1
currentEpisodeId: ep-1
episodes:
  - id: ep-1
    title: 第一场
    shots:
      - id: shot-1
        imageUrl: https://example.com/edited.png
        variations: [https://example.com/1.png]
        progress: 40
settings:
  defaultAspectRatio: "16:9"
  defaultArtStyle: cinematic-realism
  defaultModelType: gemini-2.5-flash
  defaultStyleReference:
    - {id: remote, tag: noir, imageUrl: https://example.com/noir.png}
    - {id: inline, tag: neon, imageUrl: "data:image/png;base64,iVBORw0KGgo="}
  characterLibrary:
    - {id: c1, name: a}
    - {id: c2, name: b}
    - {id: c3, name: c}
    - {id: c4, name: d}
    - {id: c5, name: e}
`

func TestOpen_RepairsHandEditedProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storyboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(repairableProject), 0o644))

	s, err := Open(path)
	require.NoError(t, err)

	got := s.Settings()
	assert.Len(t, got.CharacterLibrary, domain.MaxReferenceImages)
	require.Len(t, got.DefaultStyleReference, 1)
	assert.Equal(t, "inline", got.DefaultStyleReference[0].ID)

	shot, err := s.Shot("ep-1", "shot-1")
	require.NoError(t, err)
	assert.Zero(t, shot.Progress)
	assert.Equal(t, "https://example.com/edited.png", shot.ImageURL)
	assert.Contains(t, shot.Variations, shot.ImageURL)
}

func TestOpen_RejectsInvalidEnums(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storyboard.yaml")
	contents := strings.Replace(repairableProject, "defaultArtStyle: cinematic-realism", "defaultArtStyle: bogus", 1)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)
}
