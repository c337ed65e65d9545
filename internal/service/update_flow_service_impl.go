package service

import (
	"context"
	"errors"
	"log/slog"
	"path"

	"github.com/google/uuid"
	"github.com/valley/backend/internal/evaluator"
	"github.com/valley/backend/internal/model"
	"github.com/valley/backend/internal/repository"
	"github.com/valley/backend/internal/storage"
)

// UpdateFlowServiceImpl は UpdateFlowService の実装
type UpdateFlowServiceImpl struct {
	repo      repository.UpdateRepository
	files     storage.Storage
	evaluator evaluator.Evaluator
}

// NewUpdateFlowService は UpdateFlowServiceImpl を生成する
func NewUpdateFlowService(repo repository.UpdateRepository, files storage.Storage, ev evaluator.Evaluator) UpdateFlowService {
	return &UpdateFlowServiceImpl{repo: repo, files: files, evaluator: ev}
}

// LoadInitial は編集 ID があれば保存済みアップデートを、なければ空の下書きを返す。
// 見つからない・他人のアップデートの場合はサンプルを返す。
func (s *UpdateFlowServiceImpl) LoadInitial(ctx context.Context, founderID, editID string) DraftView {
	if editID == "" {
		return DraftView{}
	}

	existing, err := s.repo.GetByID(ctx, editID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("load update for edit failed", "error", err, "update_id", editID)
	}
	if err != nil || existing.FounderID != founderID {
		return DraftView{Draft: model.SampleDraft(), IsEdit: true}
	}
	return DraftView{Draft: existing.Draft, IsEdit: true, EditID: existing.ID}
}

// Dispatch は intent に応じて遷移を実行する
func (s *UpdateFlowServiceImpl) Dispatch(ctx context.Context, intent string, sub Submission) (*Transition, error) {
	in, err := model.ParseIntent(intent)
	if err != nil {
		return nil, err
	}
	switch in {
	case model.IntentReview:
		return s.Review(ctx, sub.Draft)
	default:
		return s.Publish(ctx, sub)
	}
}

// Review は下書きを評価する。何も保存しない
func (s *UpdateFlowServiceImpl) Review(ctx context.Context, draft model.UpdateDraft) (*Transition, error) {
	if err := validate(draft, nil); err != nil {
		return nil, err
	}
	fb, err := s.evaluator.Evaluate(ctx, draft)
	if err != nil {
		return nil, err
	}
	return &Transition{State: model.StateFeedback, Draft: draft, Feedback: fb}, nil
}

// Publish は添付ファイルとアップデートを保存する。
// 失敗時は保存済みの添付ファイルを削除し PersistenceError を返す
func (s *UpdateFlowServiceImpl) Publish(ctx context.Context, sub Submission) (*Transition, error) {
	if err := validate(sub.Draft, sub.Attachments); err != nil {
		return nil, err
	}

	update := &model.Update{FounderID: sub.FounderID, Draft: sub.Draft, Attachments: []model.Attachment{}}
	if sub.EditID != "" {
		existing, err := s.repo.GetByID(ctx, sub.EditID)
		switch {
		case err == nil && existing.FounderID == sub.FounderID:
			update.ID = existing.ID
			update.Attachments = append(update.Attachments, existing.Attachments...)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, &PersistenceError{Op: "load update", Err: err}
		}
	}

	stored, err := s.storeAttachments(ctx, sub.FounderID, sub.Attachments)
	if err != nil {
		return nil, err
	}
	update.Attachments = append(update.Attachments, stored...)

	if err := s.repo.Save(ctx, update); err != nil {
		s.removeAttachments(ctx, stored)
		return nil, &PersistenceError{Op: "save update", Err: err}
	}

	slog.Info("update published",
		"update_id", update.ID,
		"founder_id", update.FounderID,
		"attachments", len(update.Attachments),
	)
	return &Transition{State: model.StatePublished, Draft: sub.Draft, Update: update}, nil
}

func (s *UpdateFlowServiceImpl) storeAttachments(ctx context.Context, founderID string, uploads []AttachmentUpload) ([]model.Attachment, error) {
	stored := make([]model.Attachment, 0, len(uploads))
	for _, u := range uploads {
		key := path.Join("updates", founderID, uuid.NewString()+AllowedAttachmentTypes[u.ContentType])
		url, err := s.files.Save(ctx, key, u.Data, u.ContentType)
		if err != nil {
			s.removeAttachments(ctx, stored)
			return nil, &PersistenceError{Op: "store attachment", Err: err}
		}
		stored = append(stored, model.Attachment{URL: url, Filename: u.Filename, ContentType: u.ContentType})
	}
	return stored, nil
}

func (s *UpdateFlowServiceImpl) removeAttachments(ctx context.Context, attachments []model.Attachment) {
	for _, a := range attachments {
		key, ok := s.files.KeyFromURL(a.URL)
		if !ok {
			continue
		}
		if err := s.files.Delete(ctx, key); err != nil {
			slog.Error("attachment cleanup failed", "error", err, "url", a.URL)
		}
	}
}

// List はファウンダーの公開済みアップデートを新しい順に返す
func (s *UpdateFlowServiceImpl) List(ctx context.Context, founderID string) ([]*model.Update, error) {
	return s.repo.ListByFounder(ctx, founderID)
}
