package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/valley/backend/internal/model"
	"google.golang.org/genai"
)

func fullDraft() model.UpdateDraft {
	return model.UpdateDraft{
		ProjectIntro: "Acme helps bakeries forecast demand.",
		Month:        "March",
		Year:         "2026",
		Revenue:      "10000",
		Growth:       "5",
		ActiveUsers:  "120",
		Highlights:   "Shipped v1 of the forecasting dashboard and onboarded three new bakeries in Portland.",
		Challenges:   "Onboarding still takes an afternoon per bakery.",
		Asks:         "Intros to regional bakery chains and POS vendors.",
	}
}

// ---------------------------------------------------------------------------
// TemplateEvaluator
// ---------------------------------------------------------------------------

func TestTemplateEvaluator_CompleteDraft_GradeA(t *testing.T) {
	fb, err := NewTemplateEvaluator().Evaluate(context.Background(), fullDraft())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fb.Grade != "A" {
		t.Errorf("expected grade A, got %q (improvements: %v)", fb.Grade, fb.Improvements)
	}
	if len(fb.Improvements) != 0 {
		t.Errorf("expected no improvements, got %v", fb.Improvements)
	}
	if fb.ProTip != completeTip {
		t.Errorf("unexpected tip %q", fb.ProTip)
	}
}

func TestTemplateEvaluator_EmptyDraft_WellFormed(t *testing.T) {
	fb, err := NewTemplateEvaluator().Evaluate(context.Background(), model.UpdateDraft{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !fb.WellFormed() {
		t.Fatalf("expected well-formed feedback, got %+v", fb)
	}
	if fb.Grade != "D" {
		t.Errorf("expected grade D, got %q", fb.Grade)
	}
	if len(fb.Strengths) != 0 {
		t.Errorf("expected no strengths, got %v", fb.Strengths)
	}
}

func TestTemplateEvaluator_MissingMetricsNamed(t *testing.T) {
	d := fullDraft()
	d.Revenue = ""
	d.ActiveUsers = "  "

	fb, _ := NewTemplateEvaluator().Evaluate(context.Background(), d)
	if fb.Grade != "B" {
		t.Errorf("expected grade B, got %q", fb.Grade)
	}
	want := []string{"Report the missing metrics: revenue, active users."}
	if diff := cmp.Diff(want, fb.Improvements); diff != "" {
		t.Errorf("improvements mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(fb.ProTip, "Numbers build trust") {
		t.Errorf("expected metrics tip, got %q", fb.ProTip)
	}
}

func TestTemplateEvaluator_Deterministic(t *testing.T) {
	e := NewTemplateEvaluator()
	d := model.UpdateDraft{Highlights: "Shipped v1", Month: "March"}

	a, _ := e.Evaluate(context.Background(), d)
	b, _ := e.Evaluate(context.Background(), d)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("feedback differs between runs (-a +b):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Fallback
// ---------------------------------------------------------------------------

type stubEvaluator struct {
	fb    *model.ReviewFeedback
	err   error
	calls int
}

func (s *stubEvaluator) Evaluate(ctx context.Context, draft model.UpdateDraft) (*model.ReviewFeedback, error) {
	s.calls++
	return s.fb, s.err
}

func TestFallback_UsesPrimaryOnSuccess(t *testing.T) {
	want := &model.ReviewFeedback{Grade: "A+", Strengths: []string{"x"}, Improvements: []string{}, ProTip: "tip"}
	primary := &stubEvaluator{fb: want}
	secondary := &stubEvaluator{}

	got, err := (&Fallback{Primary: primary, Secondary: secondary}).Evaluate(context.Background(), fullDraft())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != want {
		t.Errorf("expected primary feedback, got %+v", got)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be called, got %d calls", secondary.calls)
	}
}

func TestFallback_PrimaryError_UsesTemplate(t *testing.T) {
	f := NewFallback(&stubEvaluator{err: errors.New("quota exceeded")})

	got, err := f.Evaluate(context.Background(), fullDraft())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Grade != "A" {
		t.Errorf("expected template grade A, got %q", got.Grade)
	}
}

func TestFallback_PrimaryMalformed_UsesSecondary(t *testing.T) {
	secondary := &stubEvaluator{fb: &model.ReviewFeedback{Grade: "C", Strengths: []string{}, Improvements: []string{}, ProTip: "t"}}
	f := &Fallback{
		Primary:   &stubEvaluator{fb: &model.ReviewFeedback{Grade: ""}},
		Secondary: secondary,
	}

	got, _ := f.Evaluate(context.Background(), fullDraft())
	if got.Grade != "C" || secondary.calls != 1 {
		t.Errorf("expected secondary feedback, got %+v (calls=%d)", got, secondary.calls)
	}
}

// ---------------------------------------------------------------------------
// GeminiEvaluator
// ---------------------------------------------------------------------------

type fakeGenerator struct {
	text      string
	err       error
	gotModel  string
	gotPrompt string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}, Role: genai.RoleModel},
		}},
	}, nil
}

func TestGeminiEvaluator_ParsesJSON(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"grade\":\"B\",\"strengths\":[\"Clear metrics\"],\"improvements\":[\"Add asks\"],\"proTip\":\"Be specific\"}\n```"}
	e := &GeminiEvaluator{models: gen, model: "gemini-test"}

	got, err := e.Evaluate(context.Background(), fullDraft())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := &model.ReviewFeedback{
		Grade:        "B",
		Strengths:    []string{"Clear metrics"},
		Improvements: []string{"Add asks"},
		ProTip:       "Be specific",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("feedback mismatch (-want +got):\n%s", diff)
	}
	if gen.gotModel != "gemini-test" {
		t.Errorf("expected model gemini-test, got %q", gen.gotModel)
	}
	if !strings.Contains(gen.gotPrompt, "Acme helps bakeries forecast demand.") {
		t.Errorf("prompt does not include the intro: %q", gen.gotPrompt)
	}
}

func TestGeminiEvaluator_MissingFields_Malformed(t *testing.T) {
	e := &GeminiEvaluator{models: &fakeGenerator{text: `{"grade":"B"}`}, model: "m"}

	if _, err := e.Evaluate(context.Background(), fullDraft()); !errors.Is(err, ErrMalformedFeedback) {
		t.Errorf("expected ErrMalformedFeedback, got %v", err)
	}
}

func TestGeminiEvaluator_GenerateError(t *testing.T) {
	e := &GeminiEvaluator{models: &fakeGenerator{err: errors.New("unavailable")}, model: "m"}

	if _, err := e.Evaluate(context.Background(), fullDraft()); err == nil {
		t.Error("expected error")
	}
}

func TestNewGeminiEvaluator_RequiresKey(t *testing.T) {
	if _, err := NewGeminiEvaluator(context.Background(), "", "", 0); err == nil {
		t.Error("expected error for empty API key")
	}
}
