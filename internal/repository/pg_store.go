package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valley/backend/internal/model"
)

// PgStore は Store の PostgreSQL 実装
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore は PgStore を生成する
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Ping は DB 接続を確認する（DB インターフェース実装）
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close は接続プールを閉じる
func (s *PgStore) Close() {
	s.pool.Close()
}

// FindByID は ID でファウンダーを取得する
func (s *PgStore) FindByID(ctx context.Context, id string) (*model.Founder, error) {
	var f model.Founder
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, created_at FROM founders WHERE id = $1`, id,
	).Scan(&f.ID, &f.Email, &f.Name, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

const updateSelectCols = `id, founder_id, project_intro, month, year, revenue, growth,
	active_users, highlights, challenges, asks, attachments, created_at, updated_at`

func scanUpdate(scan func(...any) error) (*model.Update, error) {
	var u model.Update
	var attachments []byte
	d := &u.Draft
	if err := scan(&u.ID, &u.FounderID, &d.ProjectIntro, &d.Month, &d.Year, &d.Revenue, &d.Growth,
		&d.ActiveUsers, &d.Highlights, &d.Challenges, &d.Asks, &attachments,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeAttachments(attachments, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func decodeAttachments(raw []byte, u *model.Update) error {
	u.Attachments = []model.Attachment{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &u.Attachments); err != nil {
		return fmt.Errorf("decode attachments: %w", err)
	}
	return nil
}

func encodeAttachments(u *model.Update) ([]byte, error) {
	if u.Attachments == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(u.Attachments)
}

// Save は月次アップデートを作成または更新する
func (s *PgStore) Save(ctx context.Context, update *model.Update) error {
	attachments, err := encodeAttachments(update)
	if err != nil {
		return err
	}
	d := update.Draft

	if update.ID == "" {
		return s.pool.QueryRow(ctx,
			`INSERT INTO founder_updates (founder_id, project_intro, month, year, revenue, growth,
			        active_users, highlights, challenges, asks, attachments)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id, created_at, updated_at`,
			update.FounderID, d.ProjectIntro, d.Month, d.Year, d.Revenue, d.Growth,
			d.ActiveUsers, d.Highlights, d.Challenges, d.Asks, attachments,
		).Scan(&update.ID, &update.CreatedAt, &update.UpdatedAt)
	}

	err = s.pool.QueryRow(ctx,
		`UPDATE founder_updates
		 SET project_intro = $1, month = $2, year = $3, revenue = $4, growth = $5,
		     active_users = $6, highlights = $7, challenges = $8, asks = $9,
		     attachments = $10, updated_at = NOW()
		 WHERE id = $11 AND founder_id = $12
		 RETURNING created_at, updated_at`,
		d.ProjectIntro, d.Month, d.Year, d.Revenue, d.Growth,
		d.ActiveUsers, d.Highlights, d.Challenges, d.Asks,
		attachments, update.ID, update.FounderID,
	).Scan(&update.CreatedAt, &update.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// GetByID は ID でアップデートを取得する
func (s *PgStore) GetByID(ctx context.Context, id string) (*model.Update, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+updateSelectCols+` FROM founder_updates WHERE id = $1`, id)
	u, err := scanUpdate(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// ListByFounder はファウンダーのアップデートを新しい順に返す
func (s *PgStore) ListByFounder(ctx context.Context, founderID string) ([]*model.Update, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+updateSelectCols+` FROM founder_updates
		 WHERE founder_id = $1
		 ORDER BY created_at DESC`, founderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []*model.Update
	for rows.Next() {
		u, err := scanUpdate(rows.Scan)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}
