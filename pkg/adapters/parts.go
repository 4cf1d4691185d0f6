package adapters

import (
	"errors"
	"fmt"
	"strings"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"google.golang.org/genai"
)

var (
	errNoCandidates = errors.New("応答に候補が含まれていません")
	errNoImage      = errors.New("応答に画像が含まれていません")
	errNoText       = errors.New("応答にテキストが含まれていません")
)

// imagePart は data URL の画像参照をインラインの genai.Part に変換します。
// http(s) などの URI はモデル側で取得できないため受け付けません。
func imagePart(ref string) (*genai.Part, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("画像参照が空です")
	}
	if !asset.IsDataURL(ref) {
		return nil, fmt.Errorf("%w: %.40q", domain.ErrUnsupportedImage, ref)
	}
	img, err := asset.DecodeDataURL(ref)
	if err != nil {
		return nil, err
	}
	return genai.NewPartFromBytes(img.Data, img.MimeType), nil
}

func userContent(parts ...*genai.Part) []*genai.Content {
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// firstImage は最初の候補から最初のインライン画像を取り出します。
func firstImage(resp *genai.GenerateContentResponse) (*imagedom.ImageResponse, error) {
	parts, err := candidateParts(resp)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			mimeType := p.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &imagedom.ImageResponse{Data: p.InlineData.Data, MimeType: mimeType}, nil
		}
	}
	return nil, errNoImage
}

// firstText は最初の候補のテキストパートを連結して返します。
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	parts, err := candidateParts(resp)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range parts {
		if p != nil && p.Text != "" && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errNoText
	}
	return text, nil
}

func candidateParts(resp *genai.GenerateContentResponse) ([]*genai.Part, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, errNoCandidates
	}
	return resp.Candidates[0].Content.Parts, nil
}
