package domain

import "time"

// Operator is a support agent allowed into the admin routes.
type Operator struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
