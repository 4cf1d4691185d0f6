// Package matcher は脚本テキストからキャラクター名を検出し、被写体参照に外見情報を注入します。
package matcher

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

const referenceFormat = "[Character Reference for %s: %s]"

// DetectCharacters は text に名前が含まれるキャラクターをライブラリ順に返します。
// 大文字小文字を区別しない部分一致で、同名のエントリは 1 度だけ返します。
func DetectCharacters(text string, library []domain.CharacterReference) []string {
	corpus := strings.ToLower(text)
	var names []string
	for _, c := range library {
		if !matches(corpus, c.Name) || slices.Contains(names, c.Name) {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

// BuildAugmentedSubjectReference はアクション記述とビジュアルプロンプトを検索対象として
// 一致したキャラクターの参照断片を base の後ろに付け加えます。
// ライブラリ順に走査し、名前が重複するエントリはそれぞれ独立して断片を生成します。
func BuildAugmentedSubjectReference(actionText, visualPromptText, base string, library []domain.CharacterReference) string {
	corpus := strings.ToLower(actionText + " " + visualPromptText)

	var fragments []string
	for _, c := range library {
		if matches(corpus, c.Name) {
			fragments = append(fragments, fmt.Sprintf(referenceFormat, c.Name, c.Description))
		}
	}
	if len(fragments) == 0 {
		return base
	}

	joined := strings.Join(fragments, " ")
	if base == "" {
		return joined
	}
	return base + ". " + joined
}

// matches は lowerCorpus に name が含まれるかを返します。空白のみの名前は一致しません。
func matches(lowerCorpus, name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return strings.Contains(lowerCorpus, strings.ToLower(name))
}
