package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity record. It is owned by the external auth service;
// the engine only reads it to resolve bearer credentials.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
