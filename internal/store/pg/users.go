package pg

import (
	"context"
	"database/sql"
	"errors"

	"projgate.org/internal/auth"
	"projgate.org/internal/ids"
)

var _ auth.UserStore = (*Store)(nil)

const userColumns = `id, email, password_hash, role, created_at, updated_at`

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1
	`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, auth.ErrNotFound
		}
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, role auth.Role) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, role)
		values ($1, $2, $3, $4)
		returning `+userColumns+`
	`, ids.New(), email, passwordHash, string(role))
	u, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}
	return u, nil
}

func scanUser(row *sql.Row) (auth.User, error) {
	var (
		u    auth.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return auth.User{}, err
	}
	u.Role = auth.Role(role)
	return u, nil
}
