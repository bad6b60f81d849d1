// Package memory provides in-process user and project stores used when no
// database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"projgate.org/internal/auth"
	"projgate.org/internal/ids"
	"projgate.org/internal/projects"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]auth.User // keyed by email
	projects map[string]projects.Project
}

var (
	_ auth.UserStore = (*Store)(nil)
	_ projects.Store = (*Store)(nil)
)

func New() *Store {
	return &Store{
		now:      time.Now,
		users:    make(map[string]auth.User),
		projects: make(map[string]projects.Project),
	}
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, role auth.Role) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return auth.User{}, auth.ErrConflict
	}
	now := s.now().UTC()
	u := auth.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[email] = u
	return u, nil
}

func (s *Store) CreateProject(ctx context.Context, p projects.Project) (projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return projects.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]projects.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if ownerID == "" || p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	// ids are ULIDs, so lexical order is creation order
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return projects.Project{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return projects.Project{}, projects.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p projects.Project) (projects.Project, error) {
	if err := ctx.Err(); err != nil {
		return projects.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.projects[p.ID]
	if !ok {
		return projects.Project{}, projects.ErrNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.UpdatedAt = p.UpdatedAt
	s.projects[p.ID] = cur
	return cur, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return projects.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}
