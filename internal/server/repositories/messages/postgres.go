package messages

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

// Create inserts msg and fills in the generated ID.
func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query :=
		`INSERT INTO messages (chat_id, sender_id, text, created_at, is_edited)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		msg.ChatID, msg.SenderID, msg.Text, msg.CreatedAt, msg.IsEdited).Scan(&msg.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

// Get returns the message with the given id or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Message, error) {
	query :=
		`SELECT id, chat_id, sender_id, text, created_at, is_edited FROM messages
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate is Get with a row lock held until the transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id int64) (*models.Message, error) {
	query :=
		`SELECT id, chat_id, sender_id, text, created_at, is_edited FROM messages
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Message, error) {
	m := &models.Message{}
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.CreatedAt, &m.IsEdited); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

// Update rewrites the text and edited flag of an existing message.
func (r *PostgresRepository) Update(ctx context.Context, msg *models.Message) error {
	query :=
		`UPDATE messages SET text = $2, is_edited = $3
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, msg.ID, msg.Text, msg.IsEdited)
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

// ListByChat returns the history of a chat oldest first, ties broken by id.
func (r *PostgresRepository) ListByChat(ctx context.Context, chatID int64) ([]models.Message, error) {
	query :=
		`SELECT id, chat_id, sender_id, text, created_at, is_edited FROM messages
		 WHERE chat_id = $1
		 ORDER BY created_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.CreatedAt, &m.IsEdited); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
