package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/valley/backend/internal/evaluator"
	"github.com/valley/backend/internal/model"
	"github.com/valley/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// mockUpdateRepository は UpdateRepository のモック
// ---------------------------------------------------------------------------

type mockUpdateRepository struct {
	saveFunc func(ctx context.Context, update *model.Update) error
	getFunc  func(ctx context.Context, id string) (*model.Update, error)
	listFunc func(ctx context.Context, founderID string) ([]*model.Update, error)
}

func (m *mockUpdateRepository) Save(ctx context.Context, update *model.Update) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, update)
	}
	if update.ID == "" {
		update.ID = "generated-id"
	}
	return nil
}

func (m *mockUpdateRepository) GetByID(ctx context.Context, id string) (*model.Update, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUpdateRepository) ListByFounder(ctx context.Context, founderID string) ([]*model.Update, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, founderID)
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// memStorage is an in-memory storage.Storage
// ---------------------------------------------------------------------------

type memStorage struct {
	files   map[string]string
	saveErr error
	// failAfter makes Save fail once this many files are stored (0 = never).
	failAfter int
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string]string{}}
}

func (m *memStorage) Save(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	if m.saveErr != nil || (m.failAfter > 0 && len(m.files) >= m.failAfter) {
		return "", errors.New("disk full")
	}
	b, _ := io.ReadAll(data)
	m.files[key] = string(b)
	return "/uploads/" + key, nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	delete(m.files, key)
	return nil
}

func (m *memStorage) KeyFromURL(url string) (string, bool) {
	return strings.CutPrefix(url, "/uploads/")
}

func newTestService(repo *mockUpdateRepository, files *memStorage) UpdateFlowService {
	return NewUpdateFlowService(repo, files, evaluator.NewTemplateEvaluator())
}

func bakeryDraft() model.UpdateDraft {
	return model.UpdateDraft{
		ProjectIntro: "Acme helps bakeries forecast demand.",
		Month:        "March",
		Year:         "2026",
		Revenue:      "10000",
		Growth:       "5",
		ActiveUsers:  "120",
		Highlights:   "Shipped v1",
		Challenges:   "Slow onboarding",
		Asks:         "Intros to bakery chains",
	}
}

func pdfUpload(name string) AttachmentUpload {
	return AttachmentUpload{Filename: name, ContentType: "application/pdf", Size: 8, Data: strings.NewReader("%PDF-1.7")}
}

// ---------------------------------------------------------------------------
// LoadInitial
// ---------------------------------------------------------------------------

func TestUpdateFlowService_LoadInitial_NoEditID(t *testing.T) {
	svc := newTestService(&mockUpdateRepository{}, newMemStorage())

	got := svc.LoadInitial(context.Background(), "founder-1", "")
	if got.IsEdit {
		t.Error("expected IsEdit=false")
	}
	if !got.Draft.IsEmpty() {
		t.Errorf("expected empty draft, got %+v", got.Draft)
	}
}

func TestUpdateFlowService_LoadInitial_UnknownID_ReturnsSample(t *testing.T) {
	svc := newTestService(&mockUpdateRepository{}, newMemStorage())

	got := svc.LoadInitial(context.Background(), "founder-1", "abc123")
	if !got.IsEdit {
		t.Error("expected IsEdit=true")
	}
	if got.Draft.IsEmpty() || got.Draft.ProjectIntro == "" {
		t.Errorf("expected non-empty sample draft, got %+v", got.Draft)
	}
	if got.EditID != "" {
		t.Errorf("expected no EditID for sample, got %q", got.EditID)
	}
}

func TestUpdateFlowService_LoadInitial_StoredUpdate(t *testing.T) {
	stored := &model.Update{ID: "u1", FounderID: "founder-1", Draft: bakeryDraft()}
	repo := &mockUpdateRepository{
		getFunc: func(ctx context.Context, id string) (*model.Update, error) {
			return stored, nil
		},
	}
	svc := newTestService(repo, newMemStorage())

	got := svc.LoadInitial(context.Background(), "founder-1", "u1")
	want := DraftView{Draft: bakeryDraft(), IsEdit: true, EditID: "u1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("draft view mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateFlowService_LoadInitial_ForeignUpdate_ReturnsSample(t *testing.T) {
	repo := &mockUpdateRepository{
		getFunc: func(ctx context.Context, id string) (*model.Update, error) {
			return &model.Update{ID: "u1", FounderID: "someone-else", Draft: bakeryDraft()}, nil
		},
	}
	svc := newTestService(repo, newMemStorage())

	got := svc.LoadInitial(context.Background(), "founder-1", "u1")
	if got.EditID != "" || got.Draft != model.SampleDraft() {
		t.Errorf("expected sample draft without EditID, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func TestUpdateFlowService_Dispatch_Review_RoundTripsDraft(t *testing.T) {
	saved := false
	repo := &mockUpdateRepository{
		saveFunc: func(ctx context.Context, update *model.Update) error {
			saved = true
			return nil
		},
	}
	svc := newTestService(repo, newMemStorage())

	got, err := svc.Dispatch(context.Background(), "review", Submission{FounderID: "founder-1", Draft: bakeryDraft()})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got.State != model.StateFeedback {
		t.Errorf("expected state feedback, got %q", got.State)
	}
	if diff := cmp.Diff(bakeryDraft(), got.Draft); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
	if !got.Feedback.WellFormed() {
		t.Errorf("expected well-formed feedback, got %+v", got.Feedback)
	}
	if saved {
		t.Error("review must not persist")
	}
}

func TestUpdateFlowService_Dispatch_ReviewTwice_SameShape(t *testing.T) {
	svc := newTestService(&mockUpdateRepository{}, newMemStorage())
	sub := Submission{Draft: bakeryDraft()}

	a, err := svc.Dispatch(context.Background(), "review", sub)
	if err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	b, err := svc.Dispatch(context.Background(), "review", sub)
	if err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if !a.Feedback.WellFormed() || !b.Feedback.WellFormed() {
		t.Errorf("expected well-formed feedback both times: %+v / %+v", a.Feedback, b.Feedback)
	}
}

func TestUpdateFlowService_Dispatch_InvalidIntent(t *testing.T) {
	saved := false
	repo := &mockUpdateRepository{
		saveFunc: func(ctx context.Context, update *model.Update) error {
			saved = true
			return nil
		},
	}
	svc := newTestService(repo, newMemStorage())

	for _, intent := range []string{"delete", "", "Review", "publish-now"} {
		got, err := svc.Dispatch(context.Background(), intent, Submission{Draft: model.UpdateDraft{Highlights: "x"}})
		if !errors.Is(err, ErrInvalidIntent) {
			t.Errorf("intent %q: expected ErrInvalidIntent, got %v", intent, err)
		}
		if got != nil {
			t.Errorf("intent %q: expected nil transition, got %+v", intent, got)
		}
	}
	if saved {
		t.Error("invalid intent must not persist")
	}
}

func TestUpdateFlowService_Dispatch_ValidationError(t *testing.T) {
	svc := newTestService(&mockUpdateRepository{}, newMemStorage())
	d := bakeryDraft()
	d.Year = "twenty"
	d.Revenue = "-5"
	d.Month = "Marchember"

	_, err := svc.Dispatch(context.Background(), "review", Submission{Draft: d})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, field := range []string{"year", "revenue", "month"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected %s in validation fields, got %v", field, verr.Fields)
		}
	}
	if len(verr.Fields) != 3 {
		t.Errorf("expected 3 fields, got %v", verr.Fields)
	}
}

func TestUpdateFlowService_Dispatch_EmptyDraftAccepted(t *testing.T) {
	svc := newTestService(&mockUpdateRepository{}, newMemStorage())

	got, err := svc.Dispatch(context.Background(), "publish", Submission{FounderID: "founder-1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got.State != model.StatePublished {
		t.Errorf("expected state published, got %q", got.State)
	}
}

// ---------------------------------------------------------------------------
// Publish
// ---------------------------------------------------------------------------

func TestUpdateFlowService_Publish_SavesUpdateAndAttachments(t *testing.T) {
	var saved *model.Update
	repo := &mockUpdateRepository{
		saveFunc: func(ctx context.Context, update *model.Update) error {
			update.ID = "u-new"
			saved = update
			return nil
		},
	}
	files := newMemStorage()
	svc := newTestService(repo, files)

	got, err := svc.Publish(context.Background(), Submission{
		FounderID:   "founder-1",
		Draft:       bakeryDraft(),
		Attachments: []AttachmentUpload{pdfUpload("deck.pdf")},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got.Update.ID != "u-new" || saved == nil {
		t.Fatalf("expected update saved with id u-new, got %+v", got.Update)
	}
	if saved.FounderID != "founder-1" {
		t.Errorf("expected founder-1, got %q", saved.FounderID)
	}
	if len(saved.Attachments) != 1 || saved.Attachments[0].Filename != "deck.pdf" {
		t.Fatalf("unexpected attachments %+v", saved.Attachments)
	}
	if !strings.HasPrefix(saved.Attachments[0].URL, "/uploads/updates/founder-1/") || !strings.HasSuffix(saved.Attachments[0].URL, ".pdf") {
		t.Errorf("unexpected attachment url %q", saved.Attachments[0].URL)
	}
	if len(files.files) != 1 {
		t.Errorf("expected 1 stored file, got %d", len(files.files))
	}
}

func TestUpdateFlowService_Publish_EditOwnUpdate_KeepsIDAndAttachments(t *testing.T) {
	old := model.Attachment{URL: "/uploads/updates/founder-1/old.png", Filename: "old.png", ContentType: "image/png"}
	var saved *model.Update
	repo := &mockUpdateRepository{
		getFunc: func(ctx context.Context, id string) (*model.Update, error) {
			return &model.Update{ID: id, FounderID: "founder-1", Attachments: []model.Attachment{old}}, nil
		},
		saveFunc: func(ctx context.Context, update *model.Update) error {
			saved = update
			return nil
		},
	}
	svc := newTestService(repo, newMemStorage())

	_, err := svc.Publish(context.Background(), Submission{
		FounderID:   "founder-1",
		EditID:      "u1",
		Draft:       bakeryDraft(),
		Attachments: []AttachmentUpload{pdfUpload("new.pdf")},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if saved.ID != "u1" {
		t.Errorf("expected update of u1, got id %q", saved.ID)
	}
	if len(saved.Attachments) != 2 || saved.Attachments[0] != old {
		t.Errorf("expected old attachment kept first, got %+v", saved.Attachments)
	}
}

func TestUpdateFlowService_Publish_EditForeignUpdate_Inserts(t *testing.T) {
	var saved *model.Update
	repo := &mockUpdateRepository{
		getFunc: func(ctx context.Context, id string) (*model.Update, error) {
			return &model.Update{ID: id, FounderID: "someone-else"}, nil
		},
		saveFunc: func(ctx context.Context, update *model.Update) error {
			saved = update
			return nil
		},
	}
	svc := newTestService(repo, newMemStorage())

	if _, err := svc.Publish(context.Background(), Submission{FounderID: "founder-1", EditID: "u1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if saved.ID != "" {
		t.Errorf("expected insert (empty ID), got %q", saved.ID)
	}
}

func TestUpdateFlowService_Publish_SaveFails_PersistenceErrorAndCleanup(t *testing.T) {
	repo := &mockUpdateRepository{
		saveFunc: func(ctx context.Context, update *model.Update) error {
			return errors.New("connection refused")
		},
	}
	files := newMemStorage()
	svc := newTestService(repo, files)

	got, err := svc.Publish(context.Background(), Submission{
		FounderID:   "founder-1",
		Draft:       bakeryDraft(),
		Attachments: []AttachmentUpload{pdfUpload("a.pdf"), pdfUpload("b.pdf")},
	})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PersistenceError, got %v", err)
	}
	if !perr.Retryable() || perr.Op != "save update" {
		t.Errorf("unexpected persistence error %+v", perr)
	}
	if got != nil {
		t.Errorf("expected nil transition, got %+v", got)
	}
	if len(files.files) != 0 {
		t.Errorf("expected stored attachments removed, %d remain", len(files.files))
	}
}

func TestUpdateFlowService_Publish_AttachmentFails_NoSave(t *testing.T) {
	saved := false
	repo := &mockUpdateRepository{
		saveFunc: func(ctx context.Context, update *model.Update) error {
			saved = true
			return nil
		},
	}
	files := newMemStorage()
	files.failAfter = 1
	svc := newTestService(repo, files)

	_, err := svc.Publish(context.Background(), Submission{
		FounderID:   "founder-1",
		Attachments: []AttachmentUpload{pdfUpload("a.pdf"), pdfUpload("b.pdf")},
	})
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Op != "store attachment" {
		t.Fatalf("expected store attachment PersistenceError, got %v", err)
	}
	if saved {
		t.Error("update must not be saved when an attachment fails")
	}
	if len(files.files) != 0 {
		t.Errorf("expected partial attachments removed, %d remain", len(files.files))
	}
}

func TestUpdateFlowService_Publish_LoadFails_PersistenceError(t *testing.T) {
	repo := &mockUpdateRepository{
		getFunc: func(ctx context.Context, id string) (*model.Update, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := newTestService(repo, newMemStorage())

	_, err := svc.Publish(context.Background(), Submission{FounderID: "founder-1", EditID: "u1"})
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Op != "load update" {
		t.Errorf("expected load update PersistenceError, got %v", err)
	}
}

func TestUpdateFlowService_Publish_RejectsBadAttachments(t *testing.T) {
	svc := newTestService(&mockUpdateRepository{}, newMemStorage())

	tests := []struct {
		name    string
		uploads []AttachmentUpload
	}{
		{"unsupported type", []AttachmentUpload{{Filename: "x.exe", ContentType: "application/octet-stream", Data: strings.NewReader("")}}},
		{"too large", []AttachmentUpload{{Filename: "big.pdf", ContentType: "application/pdf", Size: MaxAttachmentSize + 1, Data: strings.NewReader("")}}},
		{"too many", []AttachmentUpload{pdfUpload("1"), pdfUpload("2"), pdfUpload("3"), pdfUpload("4"), pdfUpload("5"), pdfUpload("6")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Publish(context.Background(), Submission{FounderID: "founder-1", Attachments: tt.uploads})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if _, ok := verr.Fields["attachments"]; !ok {
				t.Errorf("expected attachments field, got %v", verr.Fields)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ValidateDraft / errors
// ---------------------------------------------------------------------------

func TestValidateDraft_AcceptsFormattedNumbers(t *testing.T) {
	d := model.UpdateDraft{Month: "march", Year: "2026", Revenue: "$10,000.50", Growth: "-3.5%", ActiveUsers: "1,200"}
	if fields := ValidateDraft(d); len(fields) != 0 {
		t.Errorf("expected no errors, got %v", fields)
	}
}

func TestValidateDraft_RejectsMalformed(t *testing.T) {
	d := model.UpdateDraft{Year: "1850", Growth: "fast", ActiveUsers: "12.5"}
	fields := ValidateDraft(d)
	want := map[string]string{
		"year":        "must be a four-digit year",
		"growth":      "must be a percentage",
		"activeUsers": "must be a whole number",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateDraft_RejectsNonDecimalNumbers(t *testing.T) {
	tests := []struct {
		name  string
		draft model.UpdateDraft
		field string
	}{
		{"revenue NaN", model.UpdateDraft{Revenue: "NaN"}, "revenue"},
		{"revenue Inf", model.UpdateDraft{Revenue: "Inf"}, "revenue"},
		{"revenue hex float", model.UpdateDraft{Revenue: "0x1p4"}, "revenue"},
		{"revenue exponent", model.UpdateDraft{Revenue: "1e3"}, "revenue"},
		{"growth negative infinity", model.UpdateDraft{Growth: "-Infinity%"}, "growth"},
		{"growth NaN", model.UpdateDraft{Growth: "nan%"}, "growth"},
		{"year with plus sign", model.UpdateDraft{Year: "+2026"}, "year"},
		{"year with leading zero", model.UpdateDraft{Year: "02026"}, "year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ValidateDraft(tt.draft)
			if _, ok := fields[tt.field]; !ok || len(fields) != 1 {
				t.Errorf("expected only %s to be rejected, got %v", tt.field, fields)
			}
		})
	}
}

func TestValidationError_ErrorSortedFields(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"year": "bad", "growth": "bad"}}
	if got := err.Error(); got != "validation failed: growth: bad; year: bad" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestPersistenceError_Unwraps(t *testing.T) {
	cause := errors.New("boom")
	err := error(&PersistenceError{Op: "save update", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find cause")
	}
}

func TestUpdateFlowService_List_DelegatesToRepository(t *testing.T) {
	var capturedFounder string
	want := []*model.Update{{ID: "u2"}, {ID: "u1"}}
	repo := &mockUpdateRepository{
		listFunc: func(ctx context.Context, founderID string) ([]*model.Update, error) {
			capturedFounder = founderID
			return want, nil
		},
	}
	svc := newTestService(repo, newMemStorage())

	got, err := svc.List(context.Background(), "founder-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if capturedFounder != "founder-1" || len(got) != 2 {
		t.Errorf("unexpected list result %v (founder %q)", got, capturedFounder)
	}
}
