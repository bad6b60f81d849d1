package projects_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"projgate.org/internal/auth"
	"projgate.org/internal/projects"
	"projgate.org/internal/store/memory"
)

func newService(t *testing.T) *projects.Service {
	t.Helper()
	svc, err := projects.NewService(memory.New())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestInputValidate(t *testing.T) {
	cases := []struct {
		name   string
		in     projects.Input
		fields int
	}{
		{"ok", projects.Input{Name: "alpha", Description: "first"}, 0},
		{"blank name", projects.Input{Name: "   "}, 1},
		{"long name", projects.Input{Name: strings.Repeat("n", 21)}, 1},
		{"long description", projects.Input{Name: "x", Description: strings.Repeat("d", 101)}, 1},
		{"both", projects.Input{Name: "", Description: strings.Repeat("d", 101)}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.fields == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *auth.ValidationError
			if !errors.As(err, &verr) || len(verr.Fields) != tc.fields {
				t.Fatalf("expected %d field errors, got %v", tc.fields, err)
			}
		})
	}
}

func TestOwnershipRules(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := auth.Principal{ID: "alice", Role: auth.RoleUser}
	bob := auth.Principal{ID: "bob", Role: auth.RoleUser}
	admin := auth.Principal{ID: "root", Role: auth.RoleAdmin}

	p, err := svc.Create(ctx, alice, projects.Input{Name: " alpha ", Description: "d"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.OwnerID != "alice" || p.Name != "alpha" {
		t.Fatalf("unexpected project: %+v", p)
	}
	if _, err := svc.Create(ctx, bob, projects.Input{Name: "beta"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, bob, p.ID); !errors.Is(err, projects.ErrNotFound) {
		t.Fatalf("expected foreign project to be hidden, got %v", err)
	}
	if _, err := svc.Get(ctx, admin, p.ID); err != nil {
		t.Fatalf("admin Get: %v", err)
	}

	list, err := svc.List(ctx, alice)
	if err != nil || len(list) != 1 {
		t.Fatalf("alice list: %+v %v", list, err)
	}
	list, err = svc.List(ctx, admin)
	if err != nil || len(list) != 2 {
		t.Fatalf("admin list: %+v %v", list, err)
	}

	if _, err := svc.Update(ctx, bob, p.ID, projects.Input{Name: "stolen"}); !errors.Is(err, projects.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign update, got %v", err)
	}
	updated, err := svc.Update(ctx, alice, p.ID, projects.Input{Name: "gamma", Description: "new"})
	if err != nil || updated.Name != "gamma" || updated.Description != "new" {
		t.Fatalf("Update: %+v %v", updated, err)
	}

	if err := svc.Delete(ctx, "not-an-id"); !errors.Is(err, projects.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, alice, p.ID); !errors.Is(err, projects.ErrNotFound) {
		t.Fatalf("expected deleted project to be gone, got %v", err)
	}
}
