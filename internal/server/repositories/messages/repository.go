// Package messages stores chat messages.
package messages

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	// Create persists msg and fills in its ID.
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)

	// Get and GetForUpdate return common.ErrorNotFound for unknown ids.
	Get(ctx context.Context, id int64) (*models.Message, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Message, error)

	// Update writes the mutable fields (text, is_edited).
	Update(ctx context.Context, msg *models.Message) error

	// ListByChat returns messages ordered by (created_at, id).
	ListByChat(ctx context.Context, chatID int64) ([]models.Message, error)
}
