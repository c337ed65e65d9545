package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valley/backend/internal/model"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

const systemPrompt = `You review monthly investor updates written by startup founders.
Reply with a single JSON object and nothing else:
{"grade": "A|B|C|D", "strengths": [string], "improvements": [string], "proTip": string}
Keep each list item to one sentence. Judge only what the update contains.`

// contentGenerator is the part of *genai.Models the evaluator calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEvaluator asks a Gemini model to grade the draft.
type GeminiEvaluator struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// NewGeminiEvaluator creates a Gemini-backed evaluator. A zero timeout
// leaves the request bounded only by ctx.
func NewGeminiEvaluator(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiEvaluator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiEvaluator{models: client.Models, model: modelName, timeout: timeout}, nil
}

func buildPrompt(d model.UpdateDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project intro: %s\n", d.ProjectIntro)
	fmt.Fprintf(&b, "Period: %s %s\n", d.Month, d.Year)
	fmt.Fprintf(&b, "Revenue: %s\n", d.Revenue)
	fmt.Fprintf(&b, "Growth (%%): %s\n", d.Growth)
	fmt.Fprintf(&b, "Active users: %s\n", d.ActiveUsers)
	fmt.Fprintf(&b, "Highlights:\n%s\n", d.Highlights)
	fmt.Fprintf(&b, "Challenges:\n%s\n", d.Challenges)
	fmt.Fprintf(&b, "Asks:\n%s\n", d.Asks)
	return b.String()
}

// parseFeedback decodes the model reply, tolerating a markdown code fence.
func parseFeedback(text string) (*model.ReviewFeedback, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var fb model.ReviewFeedback
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fb); err != nil {
		return nil, fmt.Errorf("gemini: decode feedback: %w", err)
	}
	fb.Grade = strings.TrimSpace(fb.Grade)
	if !fb.WellFormed() {
		return nil, ErrMalformedFeedback
	}
	return &fb, nil
}

func (e *GeminiEvaluator) Evaluate(ctx context.Context, draft model.UpdateDraft) (*model.ReviewFeedback, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.models.GenerateContent(ctx, e.model,
		genai.Text(buildPrompt(draft)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	return parseFeedback(resp.Text())
}
