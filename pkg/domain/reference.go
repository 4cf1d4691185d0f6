package domain

import (
	"fmt"
	"slices"
	"strings"
)

// MaxReferenceImages はキャラクター・スタイル参照ライブラリの上限数です。
const MaxReferenceImages = 3

// CharacterReference はキャラクターライブラリの 1 エントリです。
// Name は脚本中のマッチングに使うタグ、Description は画像解析で得た外見の特徴です。
type CharacterReference struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	ImageURL    string `json:"imageUrl" yaml:"imageUrl"`
}

// StyleReference は画風の参照画像です。
type StyleReference struct {
	ID       string `json:"id" yaml:"id"`
	Tag      string `json:"tag" yaml:"tag"`
	ImageURL string `json:"imageUrl" yaml:"imageUrl"`
}

// String はキャラクターの情報を文字列で返します。
func (c CharacterReference) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ID)
}

// FindCharacterReference は名前でライブラリを検索します。大文字小文字は区別しません。
func FindCharacterReference(library []CharacterReference, name string) *CharacterReference {
	i := slices.IndexFunc(library, func(c CharacterReference) bool {
		return strings.EqualFold(c.Name, name)
	})
	if i < 0 {
		return nil
	}
	res := library[i]
	return &res
}
