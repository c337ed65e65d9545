package handler

import (
	"net/http"
	"path"
	"strings"
)

// AttachmentHandler は保存済みの添付ファイルを配信する。
// キーは updates/<founderID>/<file> で、本人の添付のみ返す
type AttachmentHandler struct {
	prefix string
	files  http.Handler
}

// NewAttachmentHandler は urlPrefix 配下のリクエストを dir から配信する AttachmentHandler を生成する
func NewAttachmentHandler(urlPrefix, dir string) *AttachmentHandler {
	return &AttachmentHandler{
		prefix: urlPrefix,
		files:  http.StripPrefix(urlPrefix, http.FileServer(http.Dir(dir))),
	}
}

// Serve は GET <urlPrefix>/updates/<founderID>/<file> を処理する
func (h *AttachmentHandler) Serve(rc *RequestContext, w http.ResponseWriter, r *http.Request) {
	key, ok := strings.CutPrefix(r.URL.Path, h.prefix+"/")
	if !ok || path.Clean(key) != key {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "updates" || parts[1] != rc.Founder.ID || parts[2] == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	h.files.ServeHTTP(w, r)
}
