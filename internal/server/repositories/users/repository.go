package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// ResolveByUsernames looks all names up at once. found is keyed by
	// username; missing keeps the order of names.
	ResolveByUsernames(ctx context.Context, names []string) (found map[string]models.User, missing []string, err error)

	List(ctx context.Context) ([]models.UserSummary, error)

	// LastMessageTime returns nil when the user never sent a message.
	LastMessageTime(ctx context.Context, id int64) (*time.Time, error)
}
