// Package projects holds the project resource guarded by the auth gates.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"projgate.org/internal/auth"
	"projgate.org/internal/ids"
)

const (
	maxNameChars        = 20
	maxDescriptionChars = 100
)

var ErrNotFound = errors.New("projects: not found")

// Project is a named resource owned by a single user.
type Project struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input carries the user-editable project fields.
type Input struct {
	Name        string
	Description string
}

// Store persists projects. GetProject, UpdateProject and DeleteProject
// return ErrNotFound for unknown ids.
type Store interface {
	CreateProject(ctx context.Context, p Project) (Project, error)
	// ListProjects returns projects owned by ownerID, or all projects when
	// ownerID is empty, oldest first.
	ListProjects(ctx context.Context, ownerID string) ([]Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	UpdateProject(ctx context.Context, p Project) (Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Validate checks input against the field limits.
func (in Input) Validate() error {
	verr := &auth.ValidationError{}
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		verr.Fields = append(verr.Fields, auth.FieldError{Field: "name", Message: "is required"})
	case utf8.RuneCountInString(name) > maxNameChars:
		verr.Fields = append(verr.Fields, auth.FieldError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", maxNameChars)})
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionChars {
		verr.Fields = append(verr.Fields, auth.FieldError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", maxDescriptionChars)})
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Service applies ownership rules on top of a Store. Admins see every
// project; users see only their own. Deletion is gated by role upstream.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a project service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("projects: store is required")
	}
	return &Service{store: store, now: time.Now}, nil
}

func (s *Service) Create(ctx context.Context, caller auth.Principal, in Input) (Project, error) {
	if err := in.Validate(); err != nil {
		return Project{}, err
	}
	now := s.now().UTC()
	return s.store.CreateProject(ctx, Project{
		ID:          ids.New(),
		OwnerID:     caller.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) List(ctx context.Context, caller auth.Principal) ([]Project, error) {
	owner := caller.ID
	if caller.Role == auth.RoleAdmin {
		owner = ""
	}
	return s.store.ListProjects(ctx, owner)
}

func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (Project, error) {
	if !ids.Valid(id) {
		return Project{}, ErrNotFound
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	// Foreign projects are reported as missing rather than forbidden.
	if caller.Role != auth.RoleAdmin && p.OwnerID != caller.ID {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, in Input) (Project, error) {
	if err := in.Validate(); err != nil {
		return Project{}, err
	}
	p, err := s.Get(ctx, caller, id)
	if err != nil {
		return Project{}, err
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.UpdatedAt = s.now().UTC()
	return s.store.UpdateProject(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if !ids.Valid(id) {
		return ErrNotFound
	}
	return s.store.DeleteProject(ctx, id)
}
