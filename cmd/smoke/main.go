package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"projgate.org/internal/client"
)

func main() {
	base := os.Getenv("PROJGATE_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	grpcAddr := os.Getenv("PROJGATE_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = "localhost:9090"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := client.Health(ctx, grpcAddr)
	if err != nil {
		log.Fatalf("grpc health at %s: %v", grpcAddr, err)
	}
	fmt.Printf("grpc health: %s\n", st)

	c := client.New(base, nil)
	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	const password = "smoke-password"

	if _, err := c.Register(ctx, email, password); err != nil {
		log.Fatalf("register: %v", err)
	}
	sess, err := c.Login(ctx, email, password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	if _, err := c.ListProjects(ctx); client.StatusOf(err) != 401 {
		log.Fatalf("expected 401 without token, got %v", err)
	}

	access, err := c.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		log.Fatalf("refresh: %v", err)
	}
	c.Token = access

	p, err := c.CreateProject(ctx, "smoke", "created by smoke test")
	if err != nil {
		log.Fatalf("create project: %v", err)
	}
	list, err := c.ListProjects(ctx)
	if err != nil {
		log.Fatalf("list projects: %v", err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		log.Fatalf("unexpected project list: %+v", list)
	}
	if err := c.DeleteProject(ctx, p.ID); client.StatusOf(err) != 403 {
		log.Fatalf("expected 403 deleting as user, got %v", err)
	}

	fmt.Printf("✅ projgate smoke test passed: user=%s project=%s\n", sess.ID, p.ID)
}
