package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valley/backend/internal/config"
	"github.com/valley/backend/internal/evaluator"
	"github.com/valley/backend/internal/handler"
	"github.com/valley/backend/internal/logging"
	"github.com/valley/backend/internal/model"
	"github.com/valley/backend/internal/repository"
	"github.com/valley/backend/internal/service"
	"github.com/valley/backend/internal/storage"
	"github.com/valley/backend/pkg/auth"
)

// founderSeeder is implemented by stores that own their founders table.
type founderSeeder interface {
	EnsureFounder(ctx context.Context, f *model.Founder) error
}

func main() {
	logging.Setup()
	cfg := config.Load()

	ctx := context.Background()
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logging.Fatal("failed to open store", "error", err, "driver", cfg.StoreDriver)
	}
	defer store.Close()

	// SQLite はローカル開発用。ログイン基盤がないため開発用ファウンダーを登録し、
	// AUTH_REQUIRED=true でもその ID のセッションで認証できるようにする
	if seeder, ok := store.(founderSeeder); ok {
		if err := seeder.EnsureFounder(ctx, auth.DevFounder()); err != nil {
			logging.Fatal("failed to seed dev founder", "error", err)
		}
		slog.Info("dev founder ready", "founder_id", auth.DevFounderID)
	}

	files := storage.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPrefix)

	// GEMINI_API_KEY 未設定の場合はテンプレート評価のみ
	var ev evaluator.Evaluator = evaluator.NewTemplateEvaluator()
	if cfg.GeminiAPIKey != "" {
		gemini, err := evaluator.NewGeminiEvaluator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EvaluatorTimeout)
		if err != nil {
			logging.Fatal("failed to create gemini evaluator", "error", err)
		}
		ev = evaluator.NewFallback(gemini)
	}

	updateService := service.NewUpdateFlowService(store, files, ev)

	h := handler.New(store)
	updateHandler := handler.NewUpdateHandler(updateService)
	attachmentHandler := handler.NewAttachmentHandler(cfg.UploadURLPrefix, cfg.UploadDir)
	limiter := handler.NewRateLimiter(cfg.RateLimitPerMinute)
	sessionSecretBytes := auth.SessionSecretBytes(cfg.SessionSecret)

	wrapAuth := func(next http.Handler) http.Handler {
		if cfg.AuthRequired {
			return auth.RequireFounder(sessionSecretBytes, store, cfg.LoginURL)(next)
		}
		return auth.DevAuth(next)
	}
	withContext := func(fn handler.ContextHandlerFunc) http.Handler {
		return wrapAuth(handler.WithRequestContext(&cfg, fn))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("GET /static/", handler.Static())

	// アップデート投稿フロー（認証必須）
	mux.Handle("GET /updates/new", withContext(updateHandler.New))
	mux.Handle("POST /updates/new", limiter.Middleware(withContext(updateHandler.Submit)))
	mux.Handle("POST /updates/revise", withContext(updateHandler.Revise))
	mux.Handle("GET "+cfg.ListingPath, withContext(updateHandler.List))
	mux.Handle("GET "+cfg.UploadURLPrefix+"/", withContext(attachmentHandler.Serve))

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.SecurityHeaders(handler.RequestLogger(mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr, "store", cfg.StoreDriver, "auth_required", cfg.AuthRequired)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
