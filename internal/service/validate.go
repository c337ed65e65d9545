package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/valley/backend/internal/model"
)

const (
	MaxAttachments    = 5
	MaxAttachmentSize = 5 << 20 // 5 MB
	minYear           = 1900
	maxYear           = 2100
)

// AllowedAttachmentTypes maps accepted content types to stored file extensions.
var AllowedAttachmentTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// parseNumber accepts plain decimal notation with optional sign, "$" and
// thousands separators. NaN, Inf, exponents and hex floats are rejected.
func parseNumber(s string) (float64, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789.,$ +-") != "" {
		return 0, false
	}
	s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isFourDigitYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	n, _ := strconv.Atoi(s)
	return n >= minYear && n <= maxYear
}

// ValidateDraft checks the fields that are filled in. Empty fields are accepted.
func ValidateDraft(d model.UpdateDraft) map[string]string {
	fields := map[string]string{}

	if m := strings.TrimSpace(d.Month); m != "" && !model.IsMonth(m) {
		fields["month"] = "must be a month name"
	}
	if y := strings.TrimSpace(d.Year); y != "" {
		if !isFourDigitYear(y) {
			fields["year"] = "must be a four-digit year"
		}
	}
	if r := strings.TrimSpace(d.Revenue); r != "" {
		if v, ok := parseNumber(r); !ok || v < 0 {
			fields["revenue"] = "must be a non-negative number"
		}
	}
	if g := strings.TrimSpace(d.Growth); g != "" {
		if _, ok := parseNumber(strings.TrimSuffix(g, "%")); !ok {
			fields["growth"] = "must be a percentage"
		}
	}
	if a := strings.TrimSpace(d.ActiveUsers); a != "" {
		if n, err := strconv.Atoi(strings.ReplaceAll(a, ",", "")); err != nil || n < 0 {
			fields["activeUsers"] = "must be a whole number"
		}
	}
	return fields
}

func validateAttachments(uploads []AttachmentUpload, fields map[string]string) {
	if len(uploads) > MaxAttachments {
		fields["attachments"] = "at most " + strconv.Itoa(MaxAttachments) + " files"
		return
	}
	for _, u := range uploads {
		if u.Size > MaxAttachmentSize {
			fields["attachments"] = u.Filename + " is larger than 5 MB"
			return
		}
		if _, ok := AllowedAttachmentTypes[u.ContentType]; !ok {
			fields["attachments"] = u.Filename + " has an unsupported type"
			return
		}
	}
}

func validate(d model.UpdateDraft, uploads []AttachmentUpload) error {
	fields := ValidateDraft(d)
	validateAttachments(uploads, fields)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
