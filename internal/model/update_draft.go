package model

import (
	"strings"
	"time"
)

// Months lists the accepted values of UpdateDraft.Month in calendar order.
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// IsMonth reports whether s is one of Months, ignoring case.
func IsMonth(s string) bool {
	for _, m := range Months {
		if strings.EqualFold(m, s) {
			return true
		}
	}
	return false
}

// UpdateDraft is the set of founder-entered fields of a monthly update.
// Every field is an opaque string at the transport layer.
type UpdateDraft struct {
	ProjectIntro string `json:"projectIntro"`
	Month        string `json:"month"`
	Year         string `json:"year"`
	Revenue      string `json:"revenue"`
	Growth       string `json:"growth"`
	ActiveUsers  string `json:"activeUsers"`
	Highlights   string `json:"highlights"`
	Challenges   string `json:"challenges"`
	Asks         string `json:"asks"`
}

// IsEmpty reports whether no field has been filled in.
func (d UpdateDraft) IsEmpty() bool {
	return d == UpdateDraft{}
}

// SampleDraft は編集画面で既存データが見つからない場合に表示するサンプル
func SampleDraft() UpdateDraft {
	return UpdateDraft{
		ProjectIntro: "Acme helps independent bakeries forecast daily demand so they bake less waste.",
		Month:        "February",
		Year:         "2026",
		Revenue:      "8500",
		Growth:       "12",
		ActiveUsers:  "96",
		Highlights:   "Signed our first three paying bakeries and shipped the forecasting dashboard.",
		Challenges:   "Onboarding still takes a full afternoon per bakery.",
		Asks:         "Introductions to regional bakery chains and POS vendors.",
	}
}

// Attachment は公開時に保存された添付ファイル
type Attachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// Update は公開済みの月次アップデート
type Update struct {
	ID          string       `json:"id"`
	FounderID   string       `json:"-"` // internal, not exposed
	Draft       UpdateDraft  `json:"draft"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
