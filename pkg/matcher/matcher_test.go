package matcher

import (
	"testing"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestDetectCharacters(t *testing.T) {
	library := []domain.CharacterReference{
		{ID: "1", Name: "凯", Description: "young man in a rain coat"},
		{ID: "2", Name: "Mira", Description: "silver hair"},
		{ID: "3", Name: "Old Chen", Description: "noodle chef"},
	}

	t.Run("CJK substring match", func(t *testing.T) {
		assert.Equal(t, []string{"凯"}, DetectCharacters("凯看了一眼手表", library))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, DetectCharacters("无关内容", library))
	})

	t.Run("case-insensitive", func(t *testing.T) {
		assert.Equal(t, []string{"Mira", "Old Chen"}, DetectCharacters("OLD CHEN hands MIRA a bowl", library))
	})

	t.Run("result keeps library order, not text order", func(t *testing.T) {
		assert.Equal(t, []string{"凯", "Mira"}, DetectCharacters("mira waves at 凯", library))
	})

	t.Run("blank names never match", func(t *testing.T) {
		lib := []domain.CharacterReference{{Name: "  "}, {Name: ""}}
		assert.Empty(t, DetectCharacters("anything", lib))
	})
}

func TestBuildAugmentedSubjectReference(t *testing.T) {
	library := []domain.CharacterReference{{ID: "1", Name: "N", Description: "D"}}

	t.Run("appends after non-empty base", func(t *testing.T) {
		got := BuildAugmentedSubjectReference("N walks in", "", "A", library)
		assert.Equal(t, "A. [Character Reference for N: D]", got)
	})

	t.Run("no leading separator for empty base", func(t *testing.T) {
		got := BuildAugmentedSubjectReference("N walks in", "", "", library)
		assert.Equal(t, "[Character Reference for N: D]", got)
	})

	t.Run("unchanged when nothing matches", func(t *testing.T) {
		got := BuildAugmentedSubjectReference("empty street", "rain", "A", library)
		assert.Equal(t, "A", got)
	})

	t.Run("visual prompt is part of the corpus", func(t *testing.T) {
		got := BuildAugmentedSubjectReference("", "close-up of n", "", library)
		assert.Equal(t, "[Character Reference for N: D]", got)
	})

	t.Run("fragments joined by single space in library order", func(t *testing.T) {
		lib := []domain.CharacterReference{
			{Name: "Kai", Description: "raincoat"},
			{Name: "Mira", Description: "silver hair"},
		}
		got := BuildAugmentedSubjectReference("Mira sits", "Kai stands", "base", lib)
		assert.Equal(t, "base. [Character Reference for Kai: raincoat] [Character Reference for Mira: silver hair]", got)
	})

	t.Run("duplicate names fire independently", func(t *testing.T) {
		lib := []domain.CharacterReference{
			{Name: "Kai", Description: "front"},
			{Name: "kai", Description: "back"},
		}
		got := BuildAugmentedSubjectReference("KAI turns", "", "", lib)
		assert.Equal(t, "[Character Reference for Kai: front] [Character Reference for kai: back]", got)
	})

	t.Run("corpus joins texts with a space", func(t *testing.T) {
		lib := []domain.CharacterReference{{Name: "ab", Description: "x"}}
		assert.Equal(t, "", BuildAugmentedSubjectReference("a", "b", "", lib))
	})
}
