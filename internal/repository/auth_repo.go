package repository

import (
	"context"
	"errors"

	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthRepository struct {
	DB *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{DB: db}
}

func (r *AuthRepository) GetByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	var u model.AdminUser
	query := `SELECT id, username, password_hash, created_at FROM admin_users WHERE username=$1`
	if err := r.DB.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertAdmin creates the admin account or refreshes its password hash.
// Called at startup when ADMIN_USERNAME/ADMIN_PASSWORD are configured.
func (r *AuthRepository) UpsertAdmin(ctx context.Context, username, passwordHash string) error {
	query := `
		INSERT INTO admin_users (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash
	`
	_, err := r.DB.Exec(ctx, query, username, passwordHash)
	return err
}
