package main

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gatehouse"
)

// userStore is the demo application's credential backend. It implements the
// middleware's callback contracts in memory; a real application would back
// them with its own user storage.
type userStore struct {
	mu         sync.RWMutex
	passwords  map[string][]byte // login -> bcrypt hash
	identities map[string]string // verified identity URL -> user identifier
}

func newUserStore() *userStore {
	return &userStore{
		passwords:  make(map[string][]byte),
		identities: make(map[string]string),
	}
}

// Register creates a local account.
func (s *userStore) Register(login, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.passwords[login]; exists {
		return fmt.Errorf("login %q already taken", login)
	}
	s.passwords[login] = hash
	return nil
}

// AuthenticatePassword returns the user identifier for valid credentials and
// "" otherwise. Unknown logins and wrong passwords are indistinguishable.
func (s *userStore) AuthenticatePassword(_ context.Context, login, password string) (string, error) {
	s.mu.RLock()
	hash, ok := s.passwords[login]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return "", nil
	}
	return login, nil
}

// AuthenticateIdentity maps a verified OpenID identity URL to a user,
// provisioning one on first login.
func (s *userStore) AuthenticateIdentity(_ context.Context, identityURL string) (string, error) {
	if identityURL == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.identities[identityURL]; ok {
		return user, nil
	}
	user := "openid-" + uuid.NewString()
	s.identities[identityURL] = user
	return user, nil
}

// Signup validates the submitted form and creates the account. Error
// messages are returned in the order they should render.
func (s *userStore) Signup(_ context.Context, form url.Values) gatehouse.SignupResult {
	login := form.Get("login")
	password := form.Get("password")

	var errs []string
	if login == "" {
		errs = append(errs, "login is required")
	}
	if len(password) < 8 {
		errs = append(errs, "password must be at least 8 characters")
	}
	if len(errs) > 0 {
		return gatehouse.SignupFailure(errs...)
	}

	if err := s.Register(login, password); err != nil {
		return gatehouse.SignupFailure("login taken")
	}
	return gatehouse.SignupSuccess(login)
}
