package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEpisodeNotFound  = errors.New("エピソードが見つかりません")
	ErrShotNotFound     = errors.New("ショットが見つかりません")
	ErrEmptyScript      = errors.New("脚本が空です")
	ErrEmptyInstruction = errors.New("編集指示が空です")
	ErrMissingImage     = errors.New("画像が指定されていません")
	ErrReferenceLimit   = fmt.Errorf("参照ライブラリは最大 %d 件までです", MaxReferenceImages)
	ErrInvalidCount     = errors.New("生成枚数が範囲外です")
	ErrInvalidSettings  = errors.New("設定値が不正です")
	ErrUnsupportedImage = errors.New("参照画像は data URL で指定してください")
)

// AnalysisError は脚本解析または画像解析の失敗を表します。
type AnalysisError struct {
	Op  string
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("解析に失敗しました (%s): %v", e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// RenderError は 1 回の画像生成試行の失敗を表します。
type RenderError struct {
	Model string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("画像生成に失敗しました (model: %s): %v", e.Model, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// EditError は画像編集の失敗を表します。
type EditError struct {
	Err error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("画像編集に失敗しました: %v", e.Err)
}

func (e *EditError) Unwrap() error { return e.Err }
