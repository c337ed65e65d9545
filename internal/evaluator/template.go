package evaluator

import (
	"context"
	"strings"

	"github.com/valley/backend/internal/model"
)

// minDetailChars is the combined length of highlights, challenges and asks
// below which a draft counts as thin.
const minDetailChars = 120

const completeTip = "Keep the same structure every month so investors can compare updates at a glance."

type check struct {
	ok          bool
	strength    string
	improvement string
	tip         string
}

// TemplateEvaluator grades a draft by which sections it fills in.
// The same draft always yields the same feedback.
type TemplateEvaluator struct{}

// NewTemplateEvaluator returns a TemplateEvaluator.
func NewTemplateEvaluator() *TemplateEvaluator {
	return &TemplateEvaluator{}
}

func filled(s string) bool {
	return strings.TrimSpace(s) != ""
}

func (e *TemplateEvaluator) checks(d model.UpdateDraft) []check {
	var missing []string
	if !filled(d.Revenue) {
		missing = append(missing, "revenue")
	}
	if !filled(d.Growth) {
		missing = append(missing, "growth")
	}
	if !filled(d.ActiveUsers) {
		missing = append(missing, "active users")
	}
	detail := len(strings.TrimSpace(d.Highlights)) + len(strings.TrimSpace(d.Challenges)) + len(strings.TrimSpace(d.Asks))

	return []check{
		{
			ok:          filled(d.ProjectIntro),
			strength:    "Opens with a clear description of what the company does.",
			improvement: "Open with one sentence on what the company does and for whom.",
			tip:         "Investors skim. Lead with who you help and how, in a single sentence.",
		},
		{
			ok:          filled(d.Month) && filled(d.Year),
			strength:    "Dated, so readers can place it in your timeline.",
			improvement: "Add the month and year this update covers.",
			tip:         "Date every update so it can be lined up against previous months.",
		},
		{
			ok:          len(missing) == 0,
			strength:    "Reports revenue, growth and active users.",
			improvement: "Report the missing metrics: " + strings.Join(missing, ", ") + ".",
			tip:         "Numbers build trust. Share them every month, even when they are flat.",
		},
		{
			ok:          filled(d.Highlights),
			strength:    "Calls out concrete highlights.",
			improvement: "Share at least one concrete win from this month.",
			tip:         "Pick the single win you would want forwarded and put it first.",
		},
		{
			ok:          filled(d.Challenges),
			strength:    "Is candid about what is not working.",
			improvement: "Name the biggest challenge you are facing.",
			tip:         "Updates that name problems get more help than updates that only celebrate.",
		},
		{
			ok:          filled(d.Asks),
			strength:    "Ends with asks investors can act on.",
			improvement: "Close with one or two specific asks.",
			tip:         "Make every ask specific enough that a reader knows whether they can help.",
		},
		{
			ok:          detail >= minDetailChars,
			strength:    "Gives enough detail to act on.",
			improvement: "Add a sentence or two of detail to highlights, challenges and asks.",
			tip:         "A short paragraph per section beats a list of fragments.",
		},
	}
}

func grade(score, total int) string {
	switch {
	case score == total:
		return "A"
	case score >= total-2:
		return "B"
	case score >= total-4:
		return "C"
	default:
		return "D"
	}
}

func (e *TemplateEvaluator) Evaluate(_ context.Context, draft model.UpdateDraft) (*model.ReviewFeedback, error) {
	checks := e.checks(draft)
	fb := &model.ReviewFeedback{
		Strengths:    []string{},
		Improvements: []string{},
	}
	score := 0
	for _, c := range checks {
		if c.ok {
			score++
			fb.Strengths = append(fb.Strengths, c.strength)
			continue
		}
		fb.Improvements = append(fb.Improvements, c.improvement)
		if fb.ProTip == "" {
			fb.ProTip = c.tip
		}
	}
	if fb.ProTip == "" {
		fb.ProTip = completeTip
	}
	fb.Grade = grade(score, len(checks))
	return fb, nil
}
