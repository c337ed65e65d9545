package storage

import (
	"context"
	"io"
)

// Storage は添付ファイルの保存・削除を抽象化するインターフェース。
// ローカルファイルシステム実装の他、S3 / Cloudflare R2 等に差し替え可能。
type Storage interface {
	// Save はファイルを保存し、公開 URL を返す。
	// key はストレージ内の一意パス (例: "updates/<founder>/<uuid>.pdf")。
	Save(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)

	// Delete は key に対応するファイルを削除する。存在しない key はエラーにしない。
	Delete(ctx context.Context, key string) error

	// KeyFromURL は Save が返した URL から key を取り出す。
	KeyFromURL(url string) (key string, ok bool)
}
