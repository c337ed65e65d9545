package service

import (
	"context"
	"io"

	"github.com/valley/backend/internal/model"
)

// DraftView is what the form renders on its initial GET.
type DraftView struct {
	Draft  model.UpdateDraft
	IsEdit bool
	// EditID is set only when Draft was loaded from a stored update.
	EditID string
}

// AttachmentUpload is a file submitted with the draft.
type AttachmentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// Submission is one POST of the update form.
type Submission struct {
	FounderID   string
	EditID      string
	Draft       model.UpdateDraft
	Attachments []AttachmentUpload
}

// Transition is the result of a successful Dispatch.
type Transition struct {
	State    model.FlowState
	Draft    model.UpdateDraft
	Feedback *model.ReviewFeedback // set when State is StateFeedback
	Update   *model.Update         // set when State is StatePublished
}

// UpdateFlowService drives the Draft → Feedback → Published flow.
type UpdateFlowService interface {
	// LoadInitial returns the draft for the form. It never fails: an unknown
	// editID yields the sample draft.
	LoadInitial(ctx context.Context, founderID, editID string) DraftView

	// Dispatch validates intent and draft, then performs the transition.
	// Errors: ErrInvalidIntent, *ValidationError, *PersistenceError.
	Dispatch(ctx context.Context, intent string, sub Submission) (*Transition, error)

	// Review evaluates the draft without persisting anything.
	Review(ctx context.Context, draft model.UpdateDraft) (*Transition, error)

	// Publish stores attachments and the update.
	Publish(ctx context.Context, sub Submission) (*Transition, error)

	// List returns the founder's published updates, newest first.
	List(ctx context.Context, founderID string) ([]*model.Update, error)
}
