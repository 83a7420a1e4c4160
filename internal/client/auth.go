package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/client/dto"
	"github.com/cuongbtq/enach-client/internal/client/mapper"
	"github.com/cuongbtq/enach-client/internal/resource"
	"github.com/cuongbtq/enach-client/internal/transport"
)

const (
	pathLogin    = "/api/v1/auth/login"
	pathRegister = "/api/v1/auth/register"
	pathHealth   = "/health"

	// DefaultRole is assigned to accounts created through Register
	DefaultRole = "api_user"
)

// Login exchanges credentials for a bearer token and stores it
func (c *Client) Login(ctx context.Context, username, password string) *resource.Call[domain.Token] {
	return run(c, opLogin, func() (domain.Token, error) {
		return c.authenticate(ctx, pathLogin, dto.LoginRequest{
			Username: strings.TrimSpace(username),
			Password: password,
		})
	})
}

// Register creates an account with the default role and stores the issued token
func (c *Client) Register(ctx context.Context, username, email, password string) *resource.Call[domain.Token] {
	return run(c, opRegister, func() (domain.Token, error) {
		return c.authenticate(ctx, pathRegister, dto.RegisterRequest{
			Username: strings.TrimSpace(username),
			Email:    strings.TrimSpace(email),
			Password: password,
			Role:     DefaultRole,
		})
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (domain.Token, error) {
	resp, err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   path,
		JSON:   body,
	})
	if err != nil {
		return domain.Token{}, err
	}

	var d dto.Token
	if err := resp.Decode(&d); err != nil {
		return domain.Token{}, err
	}

	token := mapper.TokenFromDTO(d)
	if token.AccessToken == "" {
		return domain.Token{}, transport.ErrEmptyResponse
	}

	if err := c.tokens.SaveToken(token.AccessToken); err != nil {
		return domain.Token{}, fmt.Errorf("failed to save token: %w", err)
	}

	c.logger.Info("Authenticated",
		slog.String("path", path),
		slog.String("token_type", token.TokenType),
		slog.Int("expires_in", token.ExpiresIn),
	)
	return token, nil
}

// Logout forgets the stored token
func (c *Client) Logout() error {
	if err := c.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	c.logger.Info("Logged out")
	return nil
}

// Authenticated reports whether a token is currently stored
func (c *Client) Authenticated() bool {
	return c.tokens.Token() != ""
}

// HealthCheck reports backend health. It never sends credentials.
func (c *Client) HealthCheck(ctx context.Context) *resource.Call[domain.Health] {
	return run(c, opHealth, func() (domain.Health, error) {
		resp, err := c.transport.Do(ctx, transport.Request{
			Method: http.MethodGet,
			Path:   pathHealth,
		})
		if err != nil {
			return domain.Health{}, err
		}

		var d dto.Health
		if err := resp.Decode(&d); err != nil {
			return domain.Health{}, err
		}
		return mapper.HealthFromDTO(d), nil
	})
}
