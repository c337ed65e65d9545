package model

import (
	"errors"
	"strings"
)

// SubmissionIntent selects the transition a submission requests.
type SubmissionIntent string

const (
	IntentReview  SubmissionIntent = "review"
	IntentPublish SubmissionIntent = "publish"
)

// ErrInvalidIntent is returned for any intent other than review or publish.
var ErrInvalidIntent = errors.New("invalid intent")

// ParseIntent validates a raw form value.
func ParseIntent(s string) (SubmissionIntent, error) {
	switch SubmissionIntent(strings.TrimSpace(s)) {
	case IntentReview:
		return IntentReview, nil
	case IntentPublish:
		return IntentPublish, nil
	default:
		return "", ErrInvalidIntent
	}
}

// FlowState is a state of the update submission flow.
type FlowState string

const (
	StateDraft     FlowState = "draft"
	StateFeedback  FlowState = "feedback"
	StatePublished FlowState = "published"
)
