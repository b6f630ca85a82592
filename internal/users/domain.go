package users

import "time"

// User represents a user account for management.
type User struct {
	ID                  string
	Email               string
	FirstName           string
	LastName            string
	Roles               []string
	NeedsPasswordChange bool
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FullName joins the display name parts.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
