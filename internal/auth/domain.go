package auth

import "time"

// User represents an authenticated user account as stored in the users
// table. Roles carries raw role ids; normalization happens in the
// authorization layer.
type User struct {
	ID                  string
	Email               string
	FirstName           string
	LastName            string
	PasswordHash        string
	Roles               []string
	NeedsPasswordChange bool
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
