package store

import (
	"testing"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEpisodes() []domain.Episode {
	return []domain.Episode{
		{ID: "ep-1", Title: "one", Shots: []domain.Shot{
			{ID: "s1", ImageURL: "a", Variations: []string{"a", "b", "c"}},
			{ID: "s2"},
		}},
		{ID: "ep-2", Title: "two", Shots: []domain.Shot{{ID: "s3"}}},
	}
}

func TestDeleteEpisode(t *testing.T) {
	t.Run("deleting the only episode is a no-op", func(t *testing.T) {
		eps := []domain.Episode{{ID: "ep-1"}}
		got, cur := DeleteEpisode(eps, "ep-1", "ep-1")
		assert.Len(t, got, 1)
		assert.Equal(t, "ep-1", cur)
	})

	t.Run("deleting current falls back to the first remaining", func(t *testing.T) {
		eps := append(sampleEpisodes(), domain.Episode{ID: "ep-3"})
		got, cur := DeleteEpisode(eps, "ep-1", "ep-1")
		require.Len(t, got, 2)
		assert.Equal(t, "ep-2", cur)
		assert.Len(t, eps, 3, "input must not be modified")
	})

	t.Run("deleting another episode keeps current", func(t *testing.T) {
		got, cur := DeleteEpisode(sampleEpisodes(), "ep-1", "ep-2")
		assert.Len(t, got, 1)
		assert.Equal(t, "ep-1", cur)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		got, cur := DeleteEpisode(sampleEpisodes(), "ep-1", "ep-x")
		assert.Len(t, got, 2)
		assert.Equal(t, "ep-1", cur)
	})
}

func TestSelectVariation(t *testing.T) {
	eps := sampleEpisodes()

	t.Run("member url switches image", func(t *testing.T) {
		got := SelectVariation(eps, "ep-1", "s1", "b")
		assert.Equal(t, "b", got[0].Shots[0].ImageURL)
		assert.Equal(t, "a", eps[0].Shots[0].ImageURL, "input must not be modified")
	})

	t.Run("non-member url leaves image unchanged", func(t *testing.T) {
		got := SelectVariation(eps, "ep-1", "s1", "zzz")
		assert.Equal(t, "a", got[0].Shots[0].ImageURL)
	})

	t.Run("shot without variations", func(t *testing.T) {
		got := SelectVariation(eps, "ep-1", "s2", "a")
		assert.Equal(t, "", got[0].Shots[1].ImageURL)
	})
}

func TestApplyAnalysis(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	shots := []domain.Shot{{ID: "n1", SceneHeader: "INT."}}
	chars := []domain.CharacterDraft{{Name: "凯"}}

	got := ApplyAnalysis(sampleEpisodes(), "ep-2", shots, chars, now)

	assert.Equal(t, shots, got[1].Shots)
	assert.Equal(t, chars, got[1].Characters)
	require.NotNil(t, got[1].LastAnalyzed)
	assert.Equal(t, now, *got[1].LastAnalyzed)
	assert.Len(t, got[0].Shots, 2, "other episodes untouched")
}

func TestUpdateShotField(t *testing.T) {
	t.Run("merges only the given fields into the addressed shot", func(t *testing.T) {
		eps := sampleEpisodes()
		got := UpdateShotField(eps, "ep-1", "s2", domain.ShotUpdate{CameraAngle: domain.Ptr("low angle")})

		assert.Equal(t, "low angle", got[0].Shots[1].CameraAngle)
		assert.Equal(t, eps[0].Shots[0], got[0].Shots[0])
		assert.Equal(t, "", eps[0].Shots[1].CameraAngle)
		assert.Zero(t, got[0].Shots[1].GenerationEpoch, "text edits do not supersede a batch")
	})

	t.Run("editing the image keeps it inside the variation set", func(t *testing.T) {
		got := UpdateShotField(sampleEpisodes(), "ep-1", "s1", domain.ShotUpdate{ImageURL: domain.Ptr("edited")})
		s := got[0].Shots[0]
		assert.Equal(t, "edited", s.ImageURL)
		assert.Equal(t, []string{"a", "b", "c", "edited"}, s.Variations)
		assert.Equal(t, uint64(1), s.GenerationEpoch)
	})

	t.Run("external edit during generation resets the generating flag", func(t *testing.T) {
		eps := sampleEpisodes()
		eps[0].Shots[1].IsGenerating = true
		eps[0].Shots[1].Progress = 50

		got := UpdateShotField(eps, "ep-1", "s2", domain.ShotUpdate{ImageURL: domain.Ptr("x")})
		s := got[0].Shots[1]
		assert.False(t, s.IsGenerating)
		assert.Equal(t, 0, s.Progress)
	})

	t.Run("replacing variations repoints a dangling image", func(t *testing.T) {
		got := UpdateShotField(sampleEpisodes(), "ep-1", "s1", domain.ShotUpdate{Variations: &[]string{"x", "y"}})
		assert.Equal(t, "x", got[0].Shots[0].ImageURL)
	})
}

func TestUpdateShotOverrides(t *testing.T) {
	eps := sampleEpisodes()
	o := &domain.ShotSettings{ArtStyle: domain.Ptr(domain.StyleAnime)}

	got := UpdateShotOverrides(eps, "ep-1", "s1", o)
	require.NotNil(t, got[0].Shots[0].OverrideSettings)
	assert.Equal(t, domain.StyleAnime, *got[0].Shots[0].OverrideSettings.ArtStyle)

	// 置き換えであってマージではない
	got = UpdateShotOverrides(got, "ep-1", "s1", &domain.ShotSettings{SubjectReference: domain.Ptr("")})
	assert.Nil(t, got[0].Shots[0].OverrideSettings.ArtStyle)
	assert.Equal(t, "", *got[0].Shots[0].OverrideSettings.SubjectReference)

	got = UpdateShotOverrides(got, "ep-1", "s1", nil)
	assert.Nil(t, got[0].Shots[0].OverrideSettings)
}

func TestRenameAndReplaceScript(t *testing.T) {
	eps := sampleEpisodes()
	got := RenameEpisode(eps, "ep-2", "renamed")
	got = ReplaceScript(got, "ep-2", "new script")

	assert.Equal(t, "renamed", got[1].Title)
	assert.Equal(t, "new script", got[1].ScriptContent)
	assert.Equal(t, "two", eps[1].Title)

	assert.Equal(t, eps, RenameEpisode(eps, "missing", "x"))
}

func TestAddEpisode(t *testing.T) {
	eps := sampleEpisodes()
	got := AddEpisode(eps, "ep-new", NextEpisodeTitle(eps))

	require.Len(t, got, 3)
	assert.Equal(t, "新剧集 3", got[2].Title)
	assert.Empty(t, got[2].Shots)
	assert.NotNil(t, got[2].Shots)
	assert.Len(t, eps, 2)
}
