package model

import "time"

// AdminUser represents a row in the admin_users table.
type AdminUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never JSON-encode
	CreatedAt    time.Time `json:"created_at"`
}
