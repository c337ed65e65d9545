package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valley/backend/internal/model"
)

// ErrInvalidIntent is returned by Dispatch for intents other than review or publish.
var ErrInvalidIntent = model.ErrInvalidIntent

// ValidationError lists every offending field of a submission, keyed by
// form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PersistenceError wraps a storage failure during publish. The draft is not
// published and the caller may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether resubmitting the same draft may succeed.
func (e *PersistenceError) Retryable() bool { return true }
