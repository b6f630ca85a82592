package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrDuplicatePath occurs when a page path collides with an existing page.
	ErrDuplicatePath = errors.New("page path already registered")
	// ErrDuplicateEmail occurs when a user email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateRole occurs when a role id collides with an existing role.
	ErrDuplicateRole = errors.New("role already registered")
)

// UserSafeMessage maps internal errors to a message safe to render.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "הרשומה לא נמצאה"
	case errors.Is(err, ErrInvalidCredentials):
		return "אימייל או סיסמה שגויים"
	case errors.Is(err, ErrDuplicatePath):
		return "כבר קיים דף עם נתיב זהה"
	case errors.Is(err, ErrDuplicateEmail):
		return "כתובת האימייל כבר רשומה"
	case errors.Is(err, ErrDuplicateRole):
		return "כבר קיים תפקיד עם מזהה זהה"
	default:
		return "אירעה שגיאה, נסו שוב"
	}
}
