// Package users provides a PostgreSQL-backed repository for user accounts
// and the user directory.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user and fills in the generated ID and CreatedAt.
// A duplicate username yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetByID returns the user with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, username, email, password_hash, created_at FROM users
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername returns the user with the given username or common.ErrorNotFound.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, email, password_hash, created_at FROM users
		 WHERE username = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.UserName, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// ResolveByUsernames looks up all names in one query. It returns the users
// found, keyed by username, and the names that do not exist in input order.
func (r *PostgresRepository) ResolveByUsernames(ctx context.Context, names []string) (map[string]models.User, []string, error) {
	found := make(map[string]models.User, len(names))
	if len(names) == 0 {
		return found, nil, nil
	}

	query :=
		`SELECT id, username, email FROM users
		 WHERE username = ANY($1)
		 `

	rows, err := r.db.QueryContext(ctx, query, names)
	if err != nil {
		return nil, nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.UserName, &u.Email); err != nil {
			return nil, nil, fmt.Errorf("db error: %w", err)
		}
		found[u.UserName] = u
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("db error: %w", err)
	}

	var missing []string
	for _, n := range names {
		if _, ok := found[n]; !ok {
			missing = append(missing, n)
		}
	}

	return found, missing, nil
}

// List returns every user ordered by id, each with the time of their latest
// message (nil if they never sent one).
func (r *PostgresRepository) List(ctx context.Context) ([]models.UserSummary, error) {
	query :=
		`SELECT u.id, u.username, u.email,
		        (SELECT MAX(m.created_at) FROM messages m WHERE m.sender_id = u.id)
		 FROM users u
		 ORDER BY u.id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.UserSummary, 0)
	for rows.Next() {
		var (
			s    models.UserSummary
			last sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.UserName, &s.Email, &last); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		s.LastMessageTime = nullTime(last)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// LastMessageTime returns when user id last sent a message, or nil.
func (r *PostgresRepository) LastMessageTime(ctx context.Context, id int64) (*time.Time, error) {
	query :=
		`SELECT MAX(created_at) FROM messages
		 WHERE sender_id = $1
		 `

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&last); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return nullTime(last), nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
