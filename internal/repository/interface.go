package repository

import (
	"context"

	"github.com/valley/backend/internal/model"
)

// DB は DB 接続の生存確認を行うインターフェース
type DB interface {
	Ping(ctx context.Context) error
}

// FounderRepository はファウンダー参照のインターフェース
type FounderRepository interface {
	// FindByID は ID でファウンダーを取得する。存在しない場合は ErrNotFound
	FindByID(ctx context.Context, id string) (*model.Founder, error)
}

// UpdateRepository は月次アップデートの永続化インターフェース（DraftStore）
type UpdateRepository interface {
	// Save は ID が空なら新規作成、そうでなければ founder_id が一致する行を更新する。
	// ID, CreatedAt, UpdatedAt は保存後の値で上書きされる。
	// 更新対象が存在しない場合は ErrNotFound
	Save(ctx context.Context, update *model.Update) error
	// GetByID は ID でアップデートを取得する。存在しない場合は ErrNotFound
	GetByID(ctx context.Context, id string) (*model.Update, error)
	// ListByFounder はファウンダーのアップデートを新しい順に返す
	ListByFounder(ctx context.Context, founderID string) ([]*model.Update, error)
}

// Store は 1 つのバックエンドが提供するリポジトリ一式
type Store interface {
	DB
	FounderRepository
	UpdateRepository
	Close()
}
