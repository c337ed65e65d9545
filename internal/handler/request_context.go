package handler

import (
	"net/http"

	"github.com/valley/backend/internal/config"
	"github.com/valley/backend/internal/model"
	"github.com/valley/backend/pkg/auth"
)

// RequestContext carries the authenticated founder and the server
// configuration into a handler.
type RequestContext struct {
	Founder *model.Founder
	Config  *config.Config
}

// ContextHandlerFunc is an HTTP handler that receives its RequestContext
// explicitly.
type ContextHandlerFunc func(rc *RequestContext, w http.ResponseWriter, r *http.Request)

// WithRequestContext builds the RequestContext from the session guard's
// context value. Requests without a founder get 401.
func WithRequestContext(cfg *config.Config, fn ContextHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		founder, ok := auth.FounderFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fn(&RequestContext{Founder: founder, Config: cfg}, w, r)
	}
}
