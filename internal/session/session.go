package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-checkout/internal/errs"
	"github.com/imrishuroy/go-storefront-checkout/internal/logger"
)

// State of a Session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Identity is what the session knows about the signed-in user.
type Identity struct {
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

// AuthAPI is the remote auth resource group.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, fullName string) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

// CredentialStore persists the bearer credential as a single string value.
// Load returns ("", nil) when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Session holds the current identity and credential. It starts Anonymous.
type Session struct {
	auth   AuthAPI
	store  CredentialStore
	logger *zap.Logger

	mu       sync.RWMutex
	state    State
	identity Identity
	token    string
}

// New returns an Anonymous session. Call Restore to pick up a stored credential.
func New(auth AuthAPI, store CredentialStore, l *zap.Logger) *Session {
	return &Session{
		auth:   auth,
		store:  store,
		logger: logger.OrNop(l),
	}
}

// Restore loads and decodes a previously stored credential. Any failure ends
// in a logout so a corrupt or unreadable credential leaves the session Anonymous.
func (s *Session) Restore(ctx context.Context) State {
	token, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to read stored credential", zap.Error(err))
		_ = s.Logout(ctx)
		return Anonymous
	}
	if token == "" {
		return s.State()
	}

	id, err := decodeToken(token)
	if err != nil {
		s.logger.Warn("discarding undecodable stored credential", zap.Error(err))
		_ = s.Logout(ctx)
		return Anonymous
	}

	s.mu.Lock()
	s.state, s.identity, s.token = Authenticated, id, token
	s.mu.Unlock()
	s.logger.Info("session restored", zap.String("email", id.Email))
	return Authenticated
}

// Sync brings the session in line with the store, which other processes
// sharing it may have written since Restore. A read error keeps the current
// state. An empty store means another process logged out.
func (s *Session) Sync(ctx context.Context) State {
	token, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to re-read stored credential", zap.Error(err))
		return s.State()
	}

	s.mu.RLock()
	current := s.token
	s.mu.RUnlock()
	if token == current {
		return s.State()
	}
	if token == "" {
		s.mu.Lock()
		s.state, s.identity, s.token = Anonymous, Identity{}, ""
		s.mu.Unlock()
		s.logger.Info("session ended elsewhere")
		return Anonymous
	}

	id, err := decodeToken(token)
	if err != nil {
		s.logger.Warn("discarding undecodable stored credential", zap.Error(err))
		_ = s.Logout(ctx)
		return Anonymous
	}
	s.mu.Lock()
	s.state, s.identity, s.token = Authenticated, id, token
	s.mu.Unlock()
	s.logger.Info("session picked up from store", zap.String("email", id.Email))
	return Authenticated
}

// Login authenticates against the remote API. On failure the session state is unchanged.
func (s *Session) Login(ctx context.Context, email, password string) error {
	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return err
	}

	id, err := decodeToken(token)
	if err != nil {
		return errs.New(errs.KindAuthentication, "server returned an unreadable credential", err)
	}
	if err := s.store.Save(ctx, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.mu.Lock()
	s.state, s.identity, s.token = Authenticated, id, token
	s.mu.Unlock()
	s.logger.Info("logged in", zap.String("email", id.Email))
	return nil
}

// Register creates a remote account. It does not sign the user in.
func (s *Session) Register(ctx context.Context, email, password, fullName string) error {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return errs.Validation("please enter a valid email address")
	}
	if password == "" {
		return errs.Validation("password is required")
	}
	if strings.TrimSpace(fullName) == "" {
		return errs.Validation("full name is required")
	}

	exists, err := s.auth.EmailExists(ctx, email)
	if err != nil {
		// the register call is the authority; an unanswered pre-check does not block it
		s.logger.Warn("email availability check failed", zap.String("email", email), zap.Error(err))
	}
	if exists {
		return errs.Validation("email is already registered")
	}

	if err := s.auth.Register(ctx, email, password, fullName); err != nil {
		s.logger.Warn("registration failed", zap.String("email", email), zap.Error(err))
		return err
	}
	s.logger.Info("registered", zap.String("email", email))
	return nil
}

// Logout drops the identity and deletes the stored credential. It is safe to call repeatedly.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.state, s.identity, s.token = Anonymous, Identity{}, ""
	s.mu.Unlock()

	if err := s.store.Delete(ctx); err != nil {
		s.logger.Warn("failed to delete stored credential", zap.Error(err))
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Credential returns the identity and bearer token, or an authentication error when Anonymous.
func (s *Session) Credential() (Identity, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated {
		return Identity{}, "", errs.Authentication("not logged in")
	}
	return s.identity, s.token, nil
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) IsAuthenticated() bool {
	return s.State() == Authenticated
}
