package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/valley/backend/internal/model"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed-width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS founders (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS founder_updates (
	id            TEXT PRIMARY KEY,
	founder_id    TEXT NOT NULL,
	project_intro TEXT NOT NULL DEFAULT '',
	month         TEXT NOT NULL DEFAULT '',
	year          TEXT NOT NULL DEFAULT '',
	revenue       TEXT NOT NULL DEFAULT '',
	growth        TEXT NOT NULL DEFAULT '',
	active_users  TEXT NOT NULL DEFAULT '',
	highlights    TEXT NOT NULL DEFAULT '',
	challenges    TEXT NOT NULL DEFAULT '',
	asks          TEXT NOT NULL DEFAULT '',
	attachments   TEXT NOT NULL DEFAULT '[]',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_founder_updates_founder ON founder_updates(founder_id, created_at);
`

// SQLiteStore は Store の SQLite 実装（ローカル開発用）
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (or creates) the database at path and applies the schema.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open sqlite: create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=rwc&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: sql open: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite: apply schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Ping は DB 接続を確認する
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close は DB を閉じる
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

// CreateFounder はファウンダーを登録する。ID が空なら採番する
func (s *SQLiteStore) CreateFounder(ctx context.Context, f *model.Founder) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO founders (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Email, f.Name, formatTime(f.CreatedAt))
	return err
}

// EnsureFounder はファウンダーが未登録なら登録する。登録済みなら何もしない
func (s *SQLiteStore) EnsureFounder(ctx context.Context, f *model.Founder) error {
	existing, err := s.FindByID(ctx, f.ID)
	switch {
	case err == nil:
		*f = *existing
		return nil
	case errors.Is(err, ErrNotFound):
		return s.CreateFounder(ctx, f)
	default:
		return err
	}
}

// FindByID は ID でファウンダーを取得する
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*model.Founder, error) {
	var f model.Founder
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM founders WHERE id = ?`, id,
	).Scan(&f.ID, &f.Email, &f.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanSQLiteUpdate(scan func(...any) error) (*model.Update, error) {
	var u model.Update
	var attachments, createdAt, updatedAt string
	d := &u.Draft
	if err := scan(&u.ID, &u.FounderID, &d.ProjectIntro, &d.Month, &d.Year, &d.Revenue, &d.Growth,
		&d.ActiveUsers, &d.Highlights, &d.Challenges, &d.Asks, &attachments,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := decodeAttachments([]byte(attachments), &u); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Save は月次アップデートを作成または更新する
func (s *SQLiteStore) Save(ctx context.Context, update *model.Update) error {
	attachments, err := encodeAttachments(update)
	if err != nil {
		return err
	}
	d := update.Draft
	now := s.now().UTC()

	if update.ID == "" {
		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO founder_updates (id, founder_id, project_intro, month, year, revenue, growth,
			        active_users, highlights, challenges, asks, attachments, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, update.FounderID, d.ProjectIntro, d.Month, d.Year, d.Revenue, d.Growth,
			d.ActiveUsers, d.Highlights, d.Challenges, d.Asks, string(attachments),
			formatTime(now), formatTime(now))
		if err != nil {
			return err
		}
		update.ID = id
		update.CreatedAt = now
		update.UpdatedAt = update.CreatedAt
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE founder_updates
		 SET project_intro = ?, month = ?, year = ?, revenue = ?, growth = ?,
		     active_users = ?, highlights = ?, challenges = ?, asks = ?,
		     attachments = ?, updated_at = ?
		 WHERE id = ? AND founder_id = ?`,
		d.ProjectIntro, d.Month, d.Year, d.Revenue, d.Growth,
		d.ActiveUsers, d.Highlights, d.Challenges, d.Asks,
		string(attachments), formatTime(now), update.ID, update.FounderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	stored, err := s.GetByID(ctx, update.ID)
	if err != nil {
		return err
	}
	update.CreatedAt = stored.CreatedAt
	update.UpdatedAt = stored.UpdatedAt
	return nil
}

// GetByID は ID でアップデートを取得する
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.Update, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+updateSelectCols+` FROM founder_updates WHERE id = ?`, id)
	u, err := scanSQLiteUpdate(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// ListByFounder はファウンダーのアップデートを新しい順に返す
func (s *SQLiteStore) ListByFounder(ctx context.Context, founderID string) ([]*model.Update, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+updateSelectCols+` FROM founder_updates
		 WHERE founder_id = ?
		 ORDER BY created_at DESC, rowid DESC`, founderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []*model.Update
	for rows.Next() {
		u, err := scanSQLiteUpdate(rows.Scan)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}
