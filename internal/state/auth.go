package state

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/enach-client/internal/client/domain"
	"github.com/cuongbtq/enach-client/internal/resource"
)

// AuthClient is the subset of the job client AuthState drives
type AuthClient interface {
	Login(ctx context.Context, username, password string) *resource.Call[domain.Token]
	Register(ctx context.Context, username, email, password string) *resource.Call[domain.Token]
	Logout() error
	Authenticated() bool
}

// AuthState keeps the latest login and registration results and whether a
// token is held
type AuthState struct {
	client AuthClient
	logger *slog.Logger

	Login         *Holder[domain.Token]
	Register      *Holder[domain.Token]
	Authenticated *Holder[bool]
}

// NewAuthState creates the holders and seeds Authenticated from the client
func NewAuthState(c AuthClient, logger *slog.Logger) *AuthState {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthState{
		client:        c,
		logger:        logger,
		Login:         NewHolder[domain.Token](),
		Register:      NewHolder[domain.Token](),
		Authenticated: NewHolder[bool](),
	}
	s.refresh()
	return s
}

func (s *AuthState) DoLogin(ctx context.Context, username, password string) *resource.Call[domain.Token] {
	call := s.Login.Track(s.client.Login(ctx, username, password))
	go s.refreshAfter(call)
	return call
}

func (s *AuthState) DoRegister(ctx context.Context, username, email, password string) *resource.Call[domain.Token] {
	call := s.Register.Track(s.client.Register(ctx, username, email, password))
	go s.refreshAfter(call)
	return call
}

// Logout clears the token and every auth holder
func (s *AuthState) Logout() error {
	err := s.client.Logout()
	if err != nil {
		s.logger.Error("Failed to clear token", slog.Any("error", err))
	}
	s.Login.Reset()
	s.Register.Reset()
	s.refresh()
	return err
}

func (s *AuthState) refreshAfter(call *resource.Call[domain.Token]) {
	<-call.Done()
	s.refresh()
}

func (s *AuthState) refresh() {
	s.Authenticated.Set(resource.Success(s.client.Authenticated()))
}
