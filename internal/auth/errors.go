package auth

import "errors"

var (
	ErrNotFound            = errors.New("auth: not found")
	ErrConflict            = errors.New("auth: already exists")
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	ErrForbidden           = errors.New("auth: forbidden")
	ErrUnauthenticated     = errors.New("auth: unauthenticated")
)
