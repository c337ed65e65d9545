package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/valley/backend/internal/model"
)

type contextKey string

const founderKey contextKey = "founder"

// FounderFromContext は context から認証済みファウンダーを取得する
func FounderFromContext(ctx context.Context) (*model.Founder, bool) {
	f, ok := ctx.Value(founderKey).(*model.Founder)
	return f, ok && f != nil
}

// WithFounder は context にファウンダーをセットする
func WithFounder(ctx context.Context, f *model.Founder) context.Context {
	return context.WithValue(ctx, founderKey, f)
}

// FounderLookup はセッションのファウンダーIDを解決する
type FounderLookup interface {
	FindByID(ctx context.Context, id string) (*model.Founder, error)
}

// RequireFounder は認証必須ミドルウェア。セッションを検証し、ファウンダーを context にセットする。
// 未認証の GET/HEAD は loginURL（next 付き）へリダイレクトし、それ以外は 401 を返す。
func RequireFounder(sessionSecret []byte, founders FounderLookup, loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			founder, err := authenticate(r, sessionSecret, founders)
			if err != nil {
				slog.Debug("unauthenticated request", "path", r.URL.Path, "error", err)
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					http.Redirect(w, r, loginURL+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithFounder(r.Context(), founder)))
		})
	}
}

var errNoSession = errors.New("no session cookie")

func authenticate(r *http.Request, secret []byte, founders FounderLookup) (*model.Founder, error) {
	cookie, err := r.Cookie(SessionCookieName())
	if err != nil {
		return nil, errNoSession
	}
	founderID, err := VerifySessionToken(cookie.Value, secret, time.Now())
	if err != nil {
		return nil, err
	}
	return founders.FindByID(r.Context(), founderID)
}

// DevFounderID は開発用のダミーファウンダーID（AUTH_REQUIRED=false 時に使用）
const DevFounderID = "dev-founder-id"

// DevFounder は開発用のダミーファウンダーを返す
func DevFounder() *model.Founder {
	return &model.Founder{ID: DevFounderID, Name: "Dev Founder", Email: "dev@localhost"}
}

// DevAuth は開発用ミドルウェア。ダミーファウンダーを context にセットする
func DevAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithFounder(r.Context(), DevFounder())))
	})
}
