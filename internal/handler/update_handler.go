package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/valley/backend/internal/model"
	"github.com/valley/backend/internal/service"
	"github.com/valley/backend/pkg/auth"
)

const (
	maxFormMemory = 8 << 20
	// 添付ファイル上限 + フォーム本体の余裕
	maxBodyBytes = service.MaxAttachments*service.MaxAttachmentSize + 1<<20

	bannerInvalidIntent = "That action is not available. Choose Get feedback or Publish."
	bannerValidation    = "Please fix the highlighted fields."
	bannerPersistence   = "We couldn't save your update. Your changes are kept below, please try again."
	bannerInternal      = "Something went wrong. Please try again."
)

// UpdateHandler はマンスリーアップデート投稿フローの HTTP ハンドラ
type UpdateHandler struct {
	svc service.UpdateFlowService
}

// NewUpdateHandler は UpdateHandler を生成する
func NewUpdateHandler(svc service.UpdateFlowService) *UpdateHandler {
	return &UpdateHandler{svc: svc}
}

type formPage struct {
	Draft  model.UpdateDraft
	IsEdit bool
	EditID string
	Months []string
	Errors map[string]string
	Banner string
}

type feedbackPage struct {
	Draft    model.UpdateDraft
	Feedback *model.ReviewFeedback
	IsEdit   bool
	EditID   string
	Banner   string
}

type listPage struct {
	Updates       []*model.Update
	JustPublished bool
	Banner        string
}

func (h *UpdateHandler) renderForm(w http.ResponseWriter, status int, p formPage) {
	p.Months = model.Months
	renderHTML(w, status, "form.html", p)
}

// renderFeedback は評価結果を表示する。評価がない場合は下書きフォームを表示する
func (h *UpdateHandler) renderFeedback(w http.ResponseWriter, status int, p feedbackPage) {
	if p.Feedback == nil {
		h.renderForm(w, status, formPage{Draft: p.Draft, IsEdit: p.IsEdit, EditID: p.EditID, Banner: p.Banner})
		return
	}
	renderHTML(w, status, "feedback.html", p)
}

// New は GET /updates/new を処理する。?edit=<id> で保存済みアップデートを読み込む
func (h *UpdateHandler) New(rc *RequestContext, w http.ResponseWriter, r *http.Request) {
	view := h.svc.LoadInitial(r.Context(), rc.Founder.ID, r.URL.Query().Get("edit"))
	h.renderForm(w, http.StatusOK, formPage{Draft: view.Draft, IsEdit: view.IsEdit, EditID: view.EditID})
}

// Submit は POST /updates/new を処理する。intent に応じて評価または公開を行う
func (h *UpdateHandler) Submit(rc *RequestContext, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := parseSubmission(r); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	uploads, closeUploads, err := collectAttachments(r)
	defer closeUploads()
	if err != nil {
		slog.Error("open attachment failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sub := service.Submission{
		FounderID:   rc.Founder.ID,
		EditID:      strings.TrimSpace(r.FormValue("edit_id")),
		Draft:       draftFromForm(r),
		Attachments: uploads,
	}
	fromFeedback := r.FormValue("from") == "feedback"
	isEdit := formIsEdit(r, sub.EditID)

	tr, err := h.svc.Dispatch(r.Context(), r.FormValue("intent"), sub)
	if err != nil {
		h.handleSubmitError(w, r, sub, isEdit, fromFeedback, err)
		return
	}

	switch tr.State {
	case model.StateFeedback:
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, map[string]any{
				"state":    "feedback",
				"data":     tr.Draft,
				"feedback": tr.Feedback,
			})
			return
		}
		h.renderFeedback(w, http.StatusOK, feedbackPage{
			Draft:    tr.Draft,
			Feedback: tr.Feedback,
			IsEdit:   isEdit,
			EditID:   sub.EditID,
		})
	case model.StatePublished:
		auth.SetSubmittedMarker(w)
		http.Redirect(w, r, rc.Config.ListingPath, http.StatusFound)
	default:
		slog.Error("unexpected transition", "state", tr.State)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *UpdateHandler) handleSubmitError(w http.ResponseWriter, r *http.Request, sub service.Submission, isEdit, fromFeedback bool, err error) {
	page := formPage{Draft: sub.Draft, IsEdit: isEdit, EditID: sub.EditID}

	var verr *service.ValidationError
	var perr *service.PersistenceError
	switch {
	case errors.Is(err, service.ErrInvalidIntent):
		slog.Warn("rejected submission intent", "intent", r.FormValue("intent"), "founder_id", sub.FounderID)
		if wantsJSON(r) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_intent"})
			return
		}
		page.Banner = bannerInvalidIntent
		h.renderForm(w, http.StatusBadRequest, page)

	case errors.As(err, &verr):
		if wantsJSON(r) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "validation_failed", "fields": verr.Fields})
			return
		}
		page.Banner = bannerValidation
		page.Errors = verr.Fields
		h.renderForm(w, http.StatusUnprocessableEntity, page)

	case errors.As(err, &perr):
		slog.Error("publish update failed", "error", err, "founder_id", sub.FounderID, "retryable", perr.Retryable())
		if wantsJSON(r) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "persistence_failed", "retryable": perr.Retryable()})
			return
		}
		if fromFeedback {
			// 評価画面から公開した場合は評価画面に戻す
			if tr, rerr := h.svc.Review(r.Context(), sub.Draft); rerr == nil {
				h.renderFeedback(w, http.StatusServiceUnavailable, feedbackPage{
					Draft:    sub.Draft,
					Feedback: tr.Feedback,
					IsEdit:   page.IsEdit,
					EditID:   sub.EditID,
					Banner:   bannerPersistence,
				})
				return
			}
		}
		page.Banner = bannerPersistence
		h.renderForm(w, http.StatusServiceUnavailable, page)

	default:
		slog.Error("submit update failed", "error", err, "founder_id", sub.FounderID)
		if wantsJSON(r) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
			return
		}
		page.Banner = bannerInternal
		h.renderForm(w, http.StatusInternalServerError, page)
	}
}

// Revise は POST /updates/revise を処理する。評価画面の値で下書きフォームを再表示する
func (h *UpdateHandler) Revise(rc *RequestContext, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	editID := strings.TrimSpace(r.FormValue("edit_id"))
	h.renderForm(w, http.StatusOK, formPage{
		Draft:  draftFromForm(r),
		IsEdit: formIsEdit(r, editID),
		EditID: editID,
	})
}

// List は GET /updates を処理する。公開直後はバナーを表示する
func (h *UpdateHandler) List(rc *RequestContext, w http.ResponseWriter, r *http.Request) {
	updates, err := h.svc.List(r.Context(), rc.Founder.ID)
	if err != nil {
		slog.Error("list updates failed", "error", err, "founder_id", rc.Founder.ID)
		if wantsJSON(r) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
			return
		}
		renderHTML(w, http.StatusInternalServerError, "list.html", listPage{Banner: bannerInternal})
		return
	}

	// nil スライスを空配列として返す
	if updates == nil {
		updates = []*model.Update{}
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string][]*model.Update{"updates": updates})
		return
	}
	renderHTML(w, http.StatusOK, "list.html", listPage{
		Updates:       updates,
		JustPublished: auth.HasSubmittedMarker(r),
	})
}

func parseSubmission(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

// formIsEdit は編集中かどうかを返す。サンプル表示中の編集画面は edit_id を持たず is_edit だけを送る
func formIsEdit(r *http.Request, editID string) bool {
	return editID != "" || r.FormValue("is_edit") == "true"
}

func draftFromForm(r *http.Request) model.UpdateDraft {
	return model.UpdateDraft{
		ProjectIntro: r.FormValue("projectIntro"),
		Month:        r.FormValue("month"),
		Year:         r.FormValue("year"),
		Revenue:      r.FormValue("revenue"),
		Growth:       r.FormValue("growth"),
		ActiveUsers:  r.FormValue("activeUsers"),
		Highlights:   r.FormValue("highlights"),
		Challenges:   r.FormValue("challenges"),
		Asks:         r.FormValue("asks"),
	}
}

// collectAttachments は multipart の attachments を開く。
// 返り値の close は err の有無に関わらず呼ぶこと
func collectAttachments(r *http.Request) ([]service.AttachmentUpload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	if r.MultipartForm == nil {
		return nil, closeAll, nil
	}

	var uploads []service.AttachmentUpload
	for _, fh := range r.MultipartForm.File["attachments"] {
		// ファイル未選択の input は空のパートとして送られる
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		uploads = append(uploads, service.AttachmentUpload{
			Filename:    fh.Filename,
			ContentType: attachmentContentType(fh, f),
			Size:        fh.Size,
			Data:        f,
		})
	}
	return uploads, closeAll, nil
}

// attachmentContentType はヘッダーの Content-Type を使い、無い場合は先頭 512 バイトから判定する
func attachmentContentType(fh *multipart.FileHeader, f multipart.File) string {
	ct := fh.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	head := make([]byte, 512)
	n, _ := f.Read(head)
	_, _ = f.Seek(0, io.SeekStart)
	return http.DetectContentType(head[:n])
}
