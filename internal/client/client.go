// Package client is a small Go client for the projgate HTTP API and its
// gRPC health endpoint. It backs the smoke binary.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// APIError is a non-2xx response decoded from the API error body.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"error"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("projgate: %d %s: %s", e.Status, e.Code, e.Reason)
	}
	return fmt.Sprintf("projgate: %d %s", e.Status, e.Code)
}

// Session is the register/login response.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Client talks to one API base URL. Set Token to call protected routes.
type Client struct {
	baseURL string
	http    *http.Client
	Token   string
}

// New creates a client for baseURL. A nil httpClient uses a 10s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Register(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{"email": email, "password": password}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &out)
	return out, err
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &out)
	return out.AccessToken, err
}

func (c *Client) CreateProject(ctx context.Context, name, description string) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodPost, "/projects", map[string]string{"name": name, "description": description}, &out)
	return out, err
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out struct {
		Projects []Project `json:"projects"`
	}
	err := c.do(ctx, http.MethodGet, "/projects", nil, &out)
	return out.Projects, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Health queries grpc.health.v1 at target with insecure transport.
func Health(ctx context.Context, target string, opts ...grpc.DialOption) (healthpb.HealthCheckResponse_ServingStatus, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer conn.Close()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
