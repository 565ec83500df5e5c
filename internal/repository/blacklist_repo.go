package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BlacklistRepository answers whether a user may place bids. An entry may
// reference a user directly or carry only an email, so the check matches
// both the user id and the user's registered email.
type BlacklistRepository interface {
	IsBlacklisted(ctx context.Context, userID string) (bool, error)
	AddEntry(ctx context.Context, userID, email, reason, addedBy string) error
	DeactivateEntry(ctx context.Context, entryID string) (bool, error)
}

// PostgresBlacklistRepository implements BlacklistRepository on pgx.
type PostgresBlacklistRepository struct {
	DB *pgxpool.Pool
}

func NewPostgresBlacklistRepository(db *pgxpool.Pool) *PostgresBlacklistRepository {
	return &PostgresBlacklistRepository{DB: db}
}

// IsBlacklisted reports whether an active entry matches the user's id or
// registered email.
func (r *PostgresBlacklistRepository) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	var blacklisted bool
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM blacklist b
			WHERE b.is_active
			AND (b.user_id = $1
				OR (b.email IS NOT NULL AND b.email = (SELECT email FROM users WHERE id = $1)))
		)`
	err := r.DB.QueryRow(ctx, query, userID).Scan(&blacklisted)
	return blacklisted, err
}

// AddEntry creates an active blacklist entry. Either userID or email may be
// empty, not both.
func (r *PostgresBlacklistRepository) AddEntry(ctx context.Context, userID, email, reason, addedBy string) error {
	var userRef, emailRef *string
	if userID != "" {
		userRef = &userID
	}
	if email != "" {
		emailRef = &email
	}
	_, err := r.DB.Exec(ctx,
		`INSERT INTO blacklist (id, user_id, email, reason, added_by, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
		uuid.New().String(), userRef, emailRef, reason, addedBy, time.Now().UTC())
	return err
}

// DeactivateEntry lifts a blacklist entry without deleting its audit trail.
func (r *PostgresBlacklistRepository) DeactivateEntry(ctx context.Context, entryID string) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE blacklist SET is_active = FALSE WHERE id = $1 AND is_active`, entryID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
