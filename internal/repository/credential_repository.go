package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tidyshare/tidyshare-api/internal/models"
)

// CredentialRepository stores per-user Microsoft OAuth token pairs.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository constructs the repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get loads the user's stored credential.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*models.GraphCredential, error) {
	const query = `SELECT user_id, access_token, refresh_token, expires_at, updated_at
	FROM graph_credentials WHERE user_id = $1`
	var cred models.GraphCredential
	if err := r.db.GetContext(ctx, &cred, query, userID); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Update persists a rotated token pair.
func (r *CredentialRepository) Update(ctx context.Context, cred *models.GraphCredential) error {
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE graph_credentials
	SET access_token = :access_token, refresh_token = :refresh_token, expires_at = :expires_at, updated_at = :updated_at
	WHERE user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, cred); err != nil {
		return fmt.Errorf("update graph credential: %w", err)
	}
	return nil
}

// Upsert stores a credential obtained from a fresh consent flow.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.GraphCredential) error {
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO graph_credentials (user_id, access_token, refresh_token, expires_at, updated_at)
	VALUES (:user_id, :access_token, :refresh_token, :expires_at, :updated_at)
	ON CONFLICT (user_id) DO UPDATE SET
		access_token = EXCLUDED.access_token,
		refresh_token = EXCLUDED.refresh_token,
		expires_at = EXCLUDED.expires_at,
		updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cred); err != nil {
		return fmt.Errorf("upsert graph credential: %w", err)
	}
	return nil
}
