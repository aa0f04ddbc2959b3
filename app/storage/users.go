package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mihaja/abobot/app/models"
)

// UsersRepo persists members in the users table.
type UsersRepo struct {
	db *sqlx.DB
}

// NewUsersRepo wraps the shared database handle.
func NewUsersRepo(db *sqlx.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

// Get returns the member with the given id, or ErrNotFound.
func (r *UsersRepo) Get(ctx context.Context, memberID string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u,
		`SELECT user_id, name, surname, phone, telegram_id, status
		   FROM users WHERE user_id = $1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("users get: %w", err)
	}
	return u, nil
}

// GetByTelegramID returns the member registered from the given Telegram
// account, or ErrNotFound.
func (r *UsersRepo) GetByTelegramID(ctx context.Context, tgID int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u,
		`SELECT user_id, name, surname, phone, telegram_id, status
		   FROM users WHERE telegram_id = $1
		  ORDER BY user_id LIMIT 1`, tgID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("users get by telegram id: %w", err)
	}
	return u, nil
}

// Insert creates a new member row.
func (r *UsersRepo) Insert(ctx context.Context, u models.User) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (user_id, name, surname, phone, telegram_id, status)
		 VALUES (:user_id, :name, :surname, :phone, :telegram_id, :status)`, u)
	if err != nil {
		return fmt.Errorf("users insert: %w", err)
	}
	return nil
}

// UpdateStatus sets a member's status. Missing members return ErrNotFound.
func (r *UsersRepo) UpdateStatus(ctx context.Context, memberID string, st models.UserStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = $2 WHERE user_id = $1`, memberID, st)
	if err != nil {
		return fmt.Errorf("users update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users update status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all members ordered by id.
func (r *UsersRepo) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, name, surname, phone, telegram_id, status
		   FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("users list: %w", err)
	}
	return out, nil
}
