package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/prompts"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// TextGenerator はプロンプトからテキストを生成する契約です。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, model string) (string, error)
}

// ScriptRunner は脚本を AI に渡し、ショットと登場人物に分解します。
type ScriptRunner struct {
	model         string
	promptBuilder prompts.ScriptPrompt
	aiClient      TextGenerator
	cache         *cache.Cache
}

// NewScriptRunner は依存関係を注入して初期化します。c が nil の場合は結果をキャッシュしません。
func NewScriptRunner(model string, pb prompts.ScriptPrompt, ai TextGenerator, c *cache.Cache) *ScriptRunner {
	return &ScriptRunner{
		model:         model,
		promptBuilder: pb,
		aiClient:      ai,
		cache:         c,
	}
}

// Analyze は脚本を解析します。空の脚本と上流の失敗は *domain.AnalysisError です。
func (sr *ScriptRunner) Analyze(ctx context.Context, script string) (domain.Analysis, error) {
	if strings.TrimSpace(script) == "" {
		return domain.Analysis{}, &domain.AnalysisError{Op: "script", Err: domain.ErrEmptyScript}
	}

	key := cacheKey(sr.model, script)
	if sr.cache != nil {
		if v, ok := sr.cache.Get(key); ok {
			slog.DebugContext(ctx, "ScriptRunner: キャッシュを使用します", "key", key[:12])
			return v.(domain.Analysis), nil
		}
	}

	finalPrompt, err := sr.promptBuilder.Build(prompts.ModeStoryboard, prompts.TemplateData{InputText: script})
	if err != nil {
		return domain.Analysis{}, &domain.AnalysisError{Op: "script", Err: fmt.Errorf("プロンプト生成に失敗: %w", err)}
	}

	slog.InfoContext(ctx, "ScriptRunner: Calling Gemini API", "model", sr.model, "script_chars", len([]rune(script)))
	startTime := time.Now()
	raw, err := sr.aiClient.GenerateText(ctx, finalPrompt, sr.model)
	if err != nil {
		return domain.Analysis{}, &domain.AnalysisError{Op: "script", Err: fmt.Errorf("AI の呼び出しに失敗しました: %w", err)}
	}

	analysis, err := parseResponse(raw)
	if err != nil {
		return domain.Analysis{}, &domain.AnalysisError{Op: "script", Err: err}
	}

	slog.InfoContext(ctx, "ScriptRunner: 解析が完了しました",
		"shots", len(analysis.Shots),
		"characters", len(analysis.Characters),
		"duration", time.Since(startTime).Round(time.Millisecond))

	if sr.cache != nil {
		sr.cache.Set(key, analysis, cache.DefaultExpiration)
	}
	return analysis, nil
}

func parseResponse(raw string) (domain.Analysis, error) {
	raw = strings.TrimSpace(raw)
	var rawJSON string

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		// Fallback 1: Find the outermost JSON object.
		firstBracket := strings.Index(raw, "{")
		lastBracket := strings.LastIndex(raw, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			rawJSON = raw[firstBracket : lastBracket+1]
		} else {
			// Fallback 2: Assume the entire response is JSON.
			rawJSON = raw
		}
	}

	var analysis domain.Analysis
	if err := json.Unmarshal([]byte(rawJSON), &analysis); err != nil {
		return domain.Analysis{}, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	if len(analysis.Shots) == 0 {
		return domain.Analysis{}, fmt.Errorf("AIの応答にショットが含まれていません (応答抜粋: %q)", truncateString(raw, 200))
	}

	for i := range analysis.Shots {
		s := &analysis.Shots[i]
		s.SceneHeader = strings.TrimSpace(s.SceneHeader)
		s.ActionDescription = strings.TrimSpace(s.ActionDescription)
		s.CameraAngle = strings.TrimSpace(s.CameraAngle)
		s.VisualPrompt = strings.TrimSpace(s.VisualPrompt)
	}
	if analysis.Characters == nil {
		analysis.Characters = []domain.CharacterDraft{}
	}
	return analysis, nil
}

func cacheKey(model, script string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + script))
	return hex.EncodeToString(sum[:])
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
