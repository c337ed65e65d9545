// Package evaluator produces ReviewFeedback for a founder update draft.
package evaluator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/valley/backend/internal/model"
)

// ErrMalformedFeedback is returned when an evaluator produces feedback
// missing a grade, tip or either list.
var ErrMalformedFeedback = errors.New("evaluator: malformed feedback")

// Evaluator assesses a draft.
type Evaluator interface {
	Evaluate(ctx context.Context, draft model.UpdateDraft) (*model.ReviewFeedback, error)
}

// Fallback runs Primary and, when it fails or returns malformed feedback,
// answers with Secondary instead.
type Fallback struct {
	Primary   Evaluator
	Secondary Evaluator
}

// NewFallback wraps primary with the deterministic template evaluator.
func NewFallback(primary Evaluator) *Fallback {
	return &Fallback{Primary: primary, Secondary: NewTemplateEvaluator()}
}

func (f *Fallback) Evaluate(ctx context.Context, draft model.UpdateDraft) (*model.ReviewFeedback, error) {
	fb, err := f.Primary.Evaluate(ctx, draft)
	if err == nil && fb.WellFormed() {
		return fb, nil
	}
	if err == nil {
		err = ErrMalformedFeedback
	}
	slog.Warn("primary evaluator failed, using fallback", "error", err)
	return f.Secondary.Evaluate(ctx, draft)
}
