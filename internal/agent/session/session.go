// Package session keeps the operator's credentials in the device store.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ctellolasalle/RondinLS/internal/agent/prefs"
	"github.com/ctellolasalle/RondinLS/internal/models"
)

const (
	keyAuthToken   = "authToken"
	keyCurrentUser = "currentUser"
)

// ErrNoCredentials means no operator is logged in on this device.
var ErrNoCredentials = errors.New("no stored credentials")

type Session struct {
	prefs prefs.Store
}

func New(p prefs.Store) *Session {
	return &Session{prefs: p}
}

// Token returns the stored bearer token or ErrNoCredentials.
func (s *Session) Token() (string, error) {
	token, ok, err := s.prefs.Get(keyAuthToken)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

// CurrentUser returns the operator blob stored at login time.
func (s *Session) CurrentUser() (models.User, error) {
	raw, ok, err := s.prefs.Get(keyCurrentUser)
	if err != nil {
		return models.User{}, err
	}
	if !ok || raw == "" {
		return models.User{}, ErrNoCredentials
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return models.User{}, fmt.Errorf("corrupt stored user: %w", err)
	}
	return user, nil
}

// Save stores the token and operator blob after a successful login.
func (s *Session) Save(token string, user models.User) error {
	if err := s.prefs.Set(keyAuthToken, token); err != nil {
		return err
	}
	blob, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.prefs.Set(keyCurrentUser, string(blob))
}

// Clear removes the credentials (logout).
func (s *Session) Clear() error {
	if err := s.prefs.Remove(keyAuthToken); err != nil {
		return err
	}
	return s.prefs.Remove(keyCurrentUser)
}
