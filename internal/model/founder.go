package model

import "time"

// Founder は月次アップデートを書く認証済みユーザー
type Founder struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
