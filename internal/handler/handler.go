package handler

import (
	"github.com/valley/backend/internal/repository"
)

// Handler serves the endpoints that only need the store connection.
type Handler struct {
	db repository.DB
}

func New(db repository.DB) *Handler {
	return &Handler{db: db}
}
