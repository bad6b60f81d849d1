package auth

import "context"

// UserStore describes persistence operations required by the auth subsystem.
// Implementations translate their own failures into ErrNotFound and
// ErrConflict.
type UserStore interface {
	// FindUserByEmail returns ErrNotFound when no account uses email.
	FindUserByEmail(ctx context.Context, email string) (User, error)
	// CreateUser returns ErrConflict when email is already taken.
	CreateUser(ctx context.Context, email, passwordHash string, role Role) (User, error)
}
