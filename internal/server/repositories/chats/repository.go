// Package chats stores chats and their participant sets.
package chats

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	// Create inserts the chat row and one membership row per participant.
	// Callers run it inside a transaction.
	Create(ctx context.Context, isPrivate bool, participantIDs []int64) (*models.Chat, error)

	// Get and GetForUpdate return the chat without participants, or
	// common.ErrorNotFound. GetForUpdate locks the row until the surrounding
	// transaction ends.
	Get(ctx context.Context, id int64) (*models.Chat, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Chat, error)

	Participants(ctx context.Context, chatID int64) ([]models.User, error)
	ParticipantsByChats(ctx context.Context, chatIDs []int64) (map[int64][]models.User, error)
	IsParticipant(ctx context.Context, chatID, userID int64) (bool, error)

	// AddParticipant returns common.ErrorAlreadyExists if the membership row
	// is already there.
	AddParticipant(ctx context.Context, chatID, userID int64) error

	// RemoveParticipant returns common.ErrorNotFound if there was nothing to remove.
	RemoveParticipant(ctx context.Context, chatID, userID int64) error

	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Chat, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}
