package asset

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shouni/go-utils/urlpath"
)

const (
	// DefaultImageDir はエクスポート内で画像を格納するディレクトリ名です。
	DefaultImageDir = "images"
	// DefaultScriptName はエクスポート内の脚本ファイル名です。
	DefaultScriptName = "script.txt"
	// DefaultMetadataName はエクスポート内のメタデータファイル名です。
	DefaultMetadataName = "metadata.json"
	// DefaultProjectFile は CLI が使う既定のプロジェクトファイルです。
	DefaultProjectFile = "storyboard.yaml"
)

var titleSeparatorRegex = regexp.MustCompile(`[\s/\\]`)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolveOutputPath(baseDir, fileName)
}

// ExportFileName はエクスポートする zip の既定ファイル名を返します。
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("Aim_Project_Export_%d.zip", now.UnixMilli())
}

// EpisodeFolderName はエピソードのフォルダ名を返します。index は 0 始まりです。
// 例: 0, "第一场 霓虹面馆" -> "Episode_1_第一场_霓虹面馆"
func EpisodeFolderName(index int, title string) string {
	return fmt.Sprintf("Episode_%d_%s", index+1, titleSeparatorRegex.ReplaceAllString(title, "_"))
}

// ShotImageName はショット画像のファイル名を返します。index は 0 始まりです。
func ShotImageName(index int, shotID, ext string) string {
	return fmt.Sprintf("shot_%d_%s.%s", index+1, shotID, strings.TrimPrefix(ext, "."))
}
