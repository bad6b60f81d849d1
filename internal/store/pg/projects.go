package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"projgate.org/internal/projects"
)

var _ projects.Store = (*Store)(nil)

const projectColumns = `id, owner_id, name, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) CreateProject(ctx context.Context, p projects.Project) (projects.Project, error) {
	if s.db == nil {
		return projects.Project{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into projects (id, owner_id, name, description, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
		returning `+projectColumns+`
	`, p.ID, p.OwnerID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	out, err := scanProject(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return projects.Project{}, fmt.Errorf("unknown owner %s: %w", p.OwnerID, err)
		}
		return projects.Project{}, err
	}
	return out, nil
}

func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]projects.Project, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+projectColumns+`
		from projects
		where ($1 = '' or owner_id = $1)
		order by created_at, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []projects.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (projects.Project, error) {
	if s.db == nil {
		return projects.Project{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+projectColumns+`
		from projects
		where id = $1
	`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return projects.Project{}, projects.ErrNotFound
	}
	return p, err
}

func (s *Store) UpdateProject(ctx context.Context, p projects.Project) (projects.Project, error) {
	if s.db == nil {
		return projects.Project{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update projects
		set name = $2, description = $3, updated_at = $4
		where id = $1
		returning `+projectColumns+`
	`, p.ID, p.Name, p.Description, p.UpdatedAt)
	out, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return projects.Project{}, projects.ErrNotFound
	}
	return out, err
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from projects where id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return projects.ErrNotFound
	}
	return nil
}

func scanProject(row rowScanner) (projects.Project, error) {
	var p projects.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return projects.Project{}, err
	}
	return p, nil
}
