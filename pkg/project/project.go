// Package project はストーリーボードの状態を YAML のプロジェクトファイルとして保存・復元します。
package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shouni/go-storyboard-kit/pkg/store"
	"gopkg.in/yaml.v3"
)

// FormatVersion はプロジェクトファイルの形式バージョンです。
const FormatVersion = 1

type file struct {
	Version     int `yaml:"version"`
	store.State `yaml:",inline"`
}

// Load はプロジェクトファイルを読み込みます。ファイルが存在しない場合は初期状態を返します。
func Load(path string) (store.State, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.DefaultState(), nil
		}
		return store.State{}, fmt.Errorf("プロジェクトファイルの読み込みに失敗しました: %w", err)
	}
	return Decode(contents)
}

// Decode は YAML から状態を復元します。
func Decode(contents []byte) (store.State, error) {
	var f file
	if err := yaml.Unmarshal(contents, &f); err != nil {
		return store.State{}, fmt.Errorf("プロジェクトファイルの解析に失敗しました: %w", err)
	}
	if f.Version > FormatVersion {
		return store.State{}, fmt.Errorf("未対応のプロジェクトファイル形式です (version: %d)", f.Version)
	}
	return f.State, nil
}

// Encode は状態を YAML に変換します。
func Encode(st store.State) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file{Version: FormatVersion, State: st}); err != nil {
		return nil, fmt.Errorf("プロジェクトファイルの生成に失敗しました: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save は状態をプロジェクトファイルに書き込みます。
// 一時ファイルに書いてから置き換えるため、途中で失敗しても既存のファイルは壊れません。
func Save(path string, st store.State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ディレクトリの作成に失敗しました: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("プロジェクトファイルの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("プロジェクトファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("プロジェクトファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}

// Open はプロジェクトファイルから Store を生成します。
func Open(path string, opts ...store.Option) (*store.Store, error) {
	st, err := Load(path)
	if err != nil {
		return nil, err
	}
	return store.New(append([]store.Option{store.WithState(st)}, opts...)...)
}
