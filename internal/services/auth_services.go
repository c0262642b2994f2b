package services

import (
	"context"
	"errors"

	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/middleware"
	"github.com/twelve20/pir-planet-new/internal/model"

	"golang.org/x/crypto/bcrypt"
)

// AdminStore is the persistence contract for admin accounts.
type AdminStore interface {
	GetByUsername(ctx context.Context, username string) (*model.AdminUser, error)
	UpsertAdmin(ctx context.Context, username, passwordHash string) error
}

type AuthService struct {
	Admins AdminStore
}

func NewAuthService(admins AdminStore) *AuthService {
	return &AuthService{Admins: admins}
}

// Login authenticates an admin and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.Admins.GetByUsername(ctx, username)
	if err != nil {
		// do not reveal whether the account exists
		if errors.Is(err, apperr.ErrNotFound) {
			return "", apperr.ErrForbidden
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", apperr.ErrForbidden
	}
	return middleware.GenerateToken(u.ID, u.Username, "admin", 24)
}

// EnsureAdmin creates or refreshes the admin account from config.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.Admins.UpsertAdmin(ctx, username, string(hash))
}
