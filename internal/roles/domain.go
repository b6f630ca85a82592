package roles

import "time"

// Role is a named permission group. The id doubles as the key pages
// reference in their role permission map, so it is immutable after
// creation; Priority decides which role wins when a user holds several.
type Role struct {
	ID        string
	Name      string
	Color     string
	Priority  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
