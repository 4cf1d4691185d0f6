package asset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

const dataURLPrefix = "data:"

var errNotDataURL = errors.New("data URL ではありません")

// IsDataURL は s が画像の data URL かを返します。
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix+"image")
}

// EncodeDataURL は画像データを base64 の data URL に変換します。
func EncodeDataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// EncodeImage は ImageResponse を data URL に変換します。
func EncodeImage(img *imagedom.ImageResponse) string {
	return EncodeDataURL(img.Data, img.MimeType)
}

// DecodeDataURL は data URL を画像データと MIME タイプに分解します。
func DecodeDataURL(s string) (*imagedom.ImageResponse, error) {
	if !IsDataURL(s) {
		return nil, errNotDataURL
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, dataURLPrefix), ",")
	if !ok {
		return nil, fmt.Errorf("data URL にデータ部がありません")
	}
	mimeType, params, _ := strings.Cut(header, ";")
	if params != "base64" && !strings.HasSuffix(params, ";base64") {
		return nil, fmt.Errorf("base64 以外の data URL には対応していません: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("data URL のデコードに失敗しました: %w", err)
	}
	return &imagedom.ImageResponse{Data: data, MimeType: mimeType}, nil
}

// Extension は MIME タイプのサブタイプを拡張子として返します。例: image/png -> png
func Extension(mimeType string) string {
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok || sub == "" {
		return "png"
	}
	return sub
}
