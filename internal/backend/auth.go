package backend

import (
	"context"
	"net/http"

	"edupanel/internal/models"
)

// LoginResponse is returned by POST /auth/login
type LoginResponse struct {
	Token string             `json:"token"`
	User  models.BackendUser `json:"user"`
}

// RegisterRequest is the body of POST /users
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out LoginResponse
	if err := c.t.do(ctx, http.MethodPost, "/auth/login", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a new account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.BackendUser, error) {
	var out models.BackendUser
	if err := c.t.do(ctx, http.MethodPost, "/users", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
