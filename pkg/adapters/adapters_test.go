package adapters

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-storyboard-kit/pkg/asset"
	"github.com/shouni/go-storyboard-kit/pkg/config"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    atomic.Int32
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
	delay    time.Duration
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.model, f.contents, f.config = model, contents, cfg
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.resp, f.err
}

func imageResponse(data []byte, mimeType string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("here is your frame"),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleModel),
	}}}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}}}
}

var pngRef = asset.EncodeDataURL([]byte{0x89, 'P', 'N', 'G'}, "image/png")

func TestRenderer_Render(t *testing.T) {
	gen := &fakeGenerator{resp: imageResponse([]byte("img"), "image/jpeg")}
	r := NewRenderer(gen, config.DefaultConfig(), prompts.NewImagePromptBuilder(""), nil)

	got, err := r.Render(context.Background(), domain.RenderRequest{
		Prompt:          "Kai checks his watch",
		Style:           domain.StyleAnime,
		AspectRatio:     domain.AspectCinemaScope,
		Model:           domain.ModelGemini3Pro,
		StyleReferences: []domain.StyleReference{{ID: "s1", Tag: "neon", ImageURL: pngRef}, {ID: "s2", ImageURL: "not a ref"}},
	})
	require.NoError(t, err)

	assert.Equal(t, asset.EncodeDataURL([]byte("img"), "image/jpeg"), got)
	assert.Equal(t, config.DefaultProImageModel, gen.model)
	assert.Equal(t, "16:9", gen.config.ImageConfig.AspectRatio)
	assert.Equal(t, []string{"IMAGE"}, gen.config.ResponseModalities)

	parts := gen.contents[0].Parts
	require.Len(t, parts, 2, "不正な参照はスキップされるはずです")
	assert.Contains(t, parts[0].Text, "Kai checks his watch")
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
}

func TestRenderer_Errors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"upstream error", &fakeGenerator{err: errors.New("quota")}},
		{"no candidates", &fakeGenerator{resp: &genai.GenerateContentResponse{}}},
		{"text only", &fakeGenerator{resp: textResponse("sorry")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(tt.gen, config.DefaultConfig(), prompts.NewImagePromptBuilder(""), nil)
			_, err := r.Render(context.Background(), domain.RenderRequest{Prompt: "x"})

			var rerr *domain.RenderError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, config.DefaultFlashImageModel, rerr.Model)
		})
	}
}

func TestEditor_Edit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		gen := &fakeGenerator{resp: imageResponse([]byte("edited"), "image/png")}
		got, err := NewEditor(gen, config.DefaultConfig(), nil).Edit(context.Background(), pngRef, "add rain")
		require.NoError(t, err)

		assert.Equal(t, asset.EncodeDataURL([]byte("edited"), "image/png"), got)
		assert.Equal(t, config.DefaultFlashImageModel, gen.model)
		parts := gen.contents[0].Parts
		require.Len(t, parts, 2)
		assert.NotNil(t, parts[0].InlineData)
		assert.Contains(t, parts[1].Text, "add rain")
	})

	t.Run("input errors do not call the model", func(t *testing.T) {
		gen := &fakeGenerator{}
		e := NewEditor(gen, config.DefaultConfig(), nil)

		_, err := e.Edit(context.Background(), pngRef, "  ")
		assert.ErrorIs(t, err, domain.ErrEmptyInstruction)
		_, err = e.Edit(context.Background(), "", "add rain")
		assert.ErrorIs(t, err, domain.ErrMissingImage)
		assert.Zero(t, gen.calls.Load())
	})

	t.Run("upstream failure", func(t *testing.T) {
		_, err := NewEditor(&fakeGenerator{err: errors.New("boom")}, config.DefaultConfig(), nil).Edit(context.Background(), pngRef, "x")
		var eerr *domain.EditError
		assert.ErrorAs(t, err, &eerr)
	})
}

func TestDescriber_Describe(t *testing.T) {
	t.Run("caches by kind and image", func(t *testing.T) {
		gen := &fakeGenerator{resp: textResponse("  short black hair, red scarf ")}
		d := NewDescriber(gen, config.DefaultConfig(), cache.New(time.Minute, time.Minute), nil)

		got, err := d.Describe(context.Background(), pngRef, domain.DescribeSubject)
		require.NoError(t, err)
		assert.Equal(t, "short black hair, red scarf", got)

		_, err = d.Describe(context.Background(), pngRef, domain.DescribeSubject)
		require.NoError(t, err)
		assert.Equal(t, int32(1), gen.calls.Load())

		_, err = d.Describe(context.Background(), pngRef, domain.DescribeStyle)
		require.NoError(t, err)
		assert.Equal(t, int32(2), gen.calls.Load())
		assert.Equal(t, config.DefaultGeminiModel, gen.model)
	})

	t.Run("concurrent requests share one call", func(t *testing.T) {
		gen := &fakeGenerator{resp: textResponse("neon noir"), delay: 50 * time.Millisecond}
		d := NewDescriber(gen, config.DefaultConfig(), nil, nil)

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = d.Describe(context.Background(), pngRef, domain.DescribeStyle)
			}()
		}
		wg.Wait()
		assert.Less(t, gen.calls.Load(), int32(5))
	})

	t.Run("errors are AnalysisError", func(t *testing.T) {
		d := NewDescriber(&fakeGenerator{resp: textResponse("")}, config.DefaultConfig(), nil, nil)
		_, err := d.Describe(context.Background(), pngRef, domain.DescribeSubject)
		var aerr *domain.AnalysisError
		assert.ErrorAs(t, err, &aerr)

		_, err = d.Describe(context.Background(), "", domain.DescribeSubject)
		assert.ErrorAs(t, err, &aerr)
	})
}

func TestImagePart(t *testing.T) {
	p, err := imagePart(" " + pngRef + " ")
	require.NoError(t, err)
	require.NotNil(t, p.InlineData)
	assert.Equal(t, "image/png", p.InlineData.MIMEType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, p.InlineData.Data)

	_, err = imagePart("https://example.com/ref/kai.jpg?v=2")
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)
	_, err = imagePart("kai.jpg")
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)
	_, err = imagePart("")
	assert.Error(t, err)
}
