package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mihaja/abobot/app/models"
)

// CodesRepo persists access codes in the access_codes table.
type CodesRepo struct {
	db *sqlx.DB
}

// NewCodesRepo wraps the shared database handle.
func NewCodesRepo(db *sqlx.DB) *CodesRepo {
	return &CodesRepo{db: db}
}

// Live returns a member's non-deleted code row, or ErrNotFound. At most one
// such row exists per member; the service layer keeps that invariant.
func (r *CodesRepo) Live(ctx context.Context, memberID string) (models.AccessCode, error) {
	var ac models.AccessCode
	err := r.db.GetContext(ctx, &ac,
		`SELECT user_id, code, payment_method, payment_number, status, stamp
		   FROM access_codes
		  WHERE user_id = $1 AND status <> 'deleted'
		  ORDER BY stamp DESC LIMIT 1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AccessCode{}, ErrNotFound
	}
	if err != nil {
		return models.AccessCode{}, fmt.Errorf("codes live: %w", err)
	}
	return ac, nil
}

// CodeInUse reports whether any non-deleted row of another member already
// carries the given code value.
func (r *CodesRepo) CodeInUse(ctx context.Context, code, exceptMemberID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM access_codes
		  WHERE code = $1 AND user_id <> $2 AND status <> 'deleted'`, code, exceptMemberID)
	if err != nil {
		return false, fmt.Errorf("codes in use: %w", err)
	}
	return n > 0, nil
}

// Insert creates a new code row.
func (r *CodesRepo) Insert(ctx context.Context, ac models.AccessCode) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO access_codes (user_id, code, payment_method, payment_number, status, stamp)
		 VALUES (:user_id, :code, :payment_method, :payment_number, :status, :stamp)`, ac)
	if err != nil {
		return fmt.Errorf("codes insert: %w", err)
	}
	return nil
}

// Update rewrites the payment details, status and stamp of an existing row
// identified by member id and code.
func (r *CodesRepo) Update(ctx context.Context, ac models.AccessCode) error {
	res, err := r.db.NamedExecContext(ctx,
		`UPDATE access_codes
		    SET payment_method = :payment_method,
		        payment_number = :payment_number,
		        status = :status,
		        stamp = :stamp
		  WHERE user_id = :user_id AND code = :code`, ac)
	if err != nil {
		return fmt.Errorf("codes update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("codes update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus moves a member's row in the given status to another status,
// updating the stamp. Used for approve (pending -> validated, stamp = now)
// and reject (pending -> deleted). ErrNotFound when no row matches.
func (r *CodesRepo) SetStatus(ctx context.Context, memberID string, from, to models.CodeStatus, stamp int64) (models.AccessCode, error) {
	var ac models.AccessCode
	err := r.db.GetContext(ctx, &ac,
		`UPDATE access_codes
		    SET status = $3, stamp = $4
		  WHERE user_id = $1 AND status = $2
		 RETURNING user_id, code, payment_method, payment_number, status, stamp`,
		memberID, from, to, stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AccessCode{}, ErrNotFound
	}
	if err != nil {
		return models.AccessCode{}, fmt.Errorf("codes set status: %w", err)
	}
	return ac, nil
}

// ListByStatus returns all rows in the given status ordered by stamp.
func (r *CodesRepo) ListByStatus(ctx context.Context, st models.CodeStatus) ([]models.AccessCode, error) {
	var out []models.AccessCode
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, code, payment_method, payment_number, status, stamp
		   FROM access_codes WHERE status = $1 ORDER BY stamp`, st)
	if err != nil {
		return nil, fmt.Errorf("codes list by status: %w", err)
	}
	return out, nil
}

// List returns every code row ordered by member id then stamp.
func (r *CodesRepo) List(ctx context.Context) ([]models.AccessCode, error) {
	var out []models.AccessCode
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, code, payment_method, payment_number, status, stamp
		   FROM access_codes ORDER BY user_id, stamp`)
	if err != nil {
		return nil, fmt.Errorf("codes list: %w", err)
	}
	return out, nil
}
