package chats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a chat and one participant row per id.
// Callers run it inside a transaction so a chat never exists without members.
func (r *PostgresRepository) Create(ctx context.Context, isPrivate bool, participantIDs []int64) (*models.Chat, error) {
	query :=
		`INSERT INTO chats (is_private)
		 VALUES ($1)
		 RETURNING id, created_at
		 `

	chat := &models.Chat{IsPrivate: isPrivate}
	if err := r.db.QueryRowContext(ctx, query, isPrivate).Scan(&chat.ID, &chat.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	for _, userID := range participantIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`,
			chat.ID, userID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
	}

	return chat, nil
}

// Get returns the chat without participants, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Chat, error) {
	query :=
		`SELECT id, is_private, created_at FROM chats
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate is Get with a row lock held until the transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id int64) (*models.Chat, error) {
	query :=
		`SELECT id, is_private, created_at FROM chats
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Chat, error) {
	chat := &models.Chat{}
	if err := row.Scan(&chat.ID, &chat.IsPrivate, &chat.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return chat, nil
}

// Participants returns the members of a single chat ordered by user id.
func (r *PostgresRepository) Participants(ctx context.Context, chatID int64) ([]models.User, error) {
	byChat, err := r.ParticipantsByChats(ctx, []int64{chatID})
	if err != nil {
		return nil, err
	}
	return byChat[chatID], nil
}

// ParticipantsByChats loads the members of several chats in one query.
func (r *PostgresRepository) ParticipantsByChats(ctx context.Context, chatIDs []int64) (map[int64][]models.User, error) {
	result := make(map[int64][]models.User, len(chatIDs))
	if len(chatIDs) == 0 {
		return result, nil
	}

	query :=
		`SELECT p.chat_id, u.id, u.username, u.email
		 FROM chat_participants p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.chat_id = ANY($1)
		 ORDER BY p.chat_id, u.id
		 `

	rows, err := r.db.QueryContext(ctx, query, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chatID int64
			u      models.User
		)
		if err := rows.Scan(&chatID, &u.ID, &u.UserName, &u.Email); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result[chatID] = append(result[chatID], u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) IsParticipant(ctx context.Context, chatID, userID int64) (bool, error) {
	query :=
		`SELECT EXISTS (
		     SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2
		 )
		 `

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// AddParticipant inserts a membership row. If the user is already a member
// it returns common.ErrorAlreadyExists.
func (r *PostgresRepository) AddParticipant(ctx context.Context, chatID, userID int64) error {
	query :=
		`INSERT INTO chat_participants (chat_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, chatID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

// RemoveParticipant deletes a membership row, or returns common.ErrorNotFound
// if there was none.
func (r *PostgresRepository) RemoveParticipant(ctx context.Context, chatID, userID int64) error {
	query :=
		`DELETE FROM chat_participants
		 WHERE chat_id = $1 AND user_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, chatID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ListByUser returns one page of the chats userID belongs to, ordered by id.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Chat, error) {
	query :=
		`SELECT c.id, c.is_private, c.created_at
		 FROM chats c
		 JOIN chat_participants p ON p.chat_id = c.id
		 WHERE p.user_id = $1
		 ORDER BY c.id
		 LIMIT $2 OFFSET $3
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Chat, 0, limit)
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.IsPrivate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM chat_participants WHERE user_id = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
