package auth

import "time"

// User is the credential record for an account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the identity tokens for u are issued to.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}

// Session is the result of a successful register or login.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         User
}
