// Package session owns the authenticated identity and the bearer token
// used for every API call.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/puttnotify/internal/credential"
	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
)

// Vault keys.
const (
	TokenKey   = "authToken"
	ProfileKey = "playerData"
)

var (
	ErrEmptyToken  = errors.New("empty bearer token")
	ErrNoPlayerID  = errors.New("player id unavailable")
	ErrNotSignedIn = errors.New("not signed in")
)

// Change describes a transition of the authentication state. On sign-out
// Credential holds the credential that was just forgotten.
type Change struct {
	Authenticated bool
	Credential    model.Credential
}

// Listener is notified after every committed state change.
type Listener func(Change)

// Store is the single owner of the persisted credential. Other components
// read it through Credential, Token and PlayerID.
type Store struct {
	vault credential.Vault

	mu        sync.RWMutex
	cred      *model.Credential
	listeners []Listener
}

// New returns a Store over vault. Call Load to pick up a persisted session.
func New(vault credential.Vault) *Store {
	return &Store{vault: vault}
}

// Load restores the persisted credential. A corrupt or incomplete record
// leaves the store unauthenticated instead of failing.
func (s *Store) Load() (model.Credential, bool) {
	token, err := s.vault.Get(TokenKey)
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, credential.ErrNotFound) {
			slog.Warn("Failed to read stored token", log.ErrAttr(err))
		}
		s.replace(nil)
		return model.Credential{}, false
	}

	cred := model.Credential{Token: token}

	raw, errProfile := s.vault.Get(ProfileKey)
	switch {
	case errProfile == nil && raw != "":
		var profile model.Profile
		if errJSON := json.Unmarshal([]byte(raw), &profile); errJSON != nil {
			slog.Error("Discarding corrupt stored player data", log.ErrAttr(errJSON))
			_ = s.purge()
			s.replace(nil)
			return model.Credential{}, false
		}
		cred.Profile = &profile
		cred.PlayerID = profile.PlayerID
	case errProfile != nil && !errors.Is(errProfile, credential.ErrNotFound):
		slog.Warn("Failed to read stored player data", log.ErrAttr(errProfile))
	}

	if cred.PlayerID == 0 {
		playerID, errClaim := PlayerIDFromToken(token)
		if errClaim != nil {
			slog.Warn("Stored token does not identify a player", log.ErrAttr(errClaim))
			s.replace(nil)
			return model.Credential{}, false
		}
		cred.PlayerID = playerID
	}

	s.replace(&cred)

	return cred, true
}

// Credential returns the current credential, if any.
func (s *Store) Credential() (model.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return model.Credential{}, false
	}
	return *s.cred, true
}

// Token returns the bearer token, if any.
func (s *Store) Token() (string, bool) {
	cred, ok := s.Credential()
	return cred.Token, ok
}

// PlayerID returns the authenticated player id, if any.
func (s *Store) PlayerID() (int64, bool) {
	cred, ok := s.Credential()
	return cred.PlayerID, ok
}

// Set persists a new credential and notifies listeners. The player id is
// taken from profile, falling back to the token's claims.
func (s *Store) Set(token string, profile *model.Profile) error {
	if token == "" {
		return ErrEmptyToken
	}

	cred := model.Credential{Token: token, Profile: profile}
	if profile != nil {
		cred.PlayerID = profile.PlayerID
	}
	if cred.PlayerID == 0 {
		playerID, err := PlayerIDFromToken(token)
		if err != nil {
			return err
		}
		cred.PlayerID = playerID
	}

	if err := s.vault.Set(TokenKey, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	if err := s.saveProfile(profile); err != nil {
		return err
	}

	s.replace(&cred)
	s.notify(Change{Authenticated: true, Credential: cred})

	return nil
}

// UpdateProfile replaces the cached player snapshot. On failure the
// previous snapshot stays in place.
func (s *Store) UpdateProfile(profile model.Profile) error {
	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	s.mu.Unlock()

	if err := s.saveProfile(&profile); err != nil {
		return err
	}

	s.mu.Lock()
	if s.cred != nil {
		s.cred.Profile = &profile
	}
	s.mu.Unlock()

	return nil
}

// Clear forgets the credential and notifies listeners.
func (s *Store) Clear() error {
	err := s.purge()

	s.mu.Lock()
	previous := s.cred
	s.cred = nil
	s.mu.Unlock()

	if previous != nil {
		s.notify(Change{Authenticated: false, Credential: *previous})
	}

	return err
}

// Subscribe registers fn to run after every login or logout.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

func (s *Store) saveProfile(profile *model.Profile) error {
	if profile == nil {
		if err := s.vault.Delete(ProfileKey); err != nil {
			return fmt.Errorf("clearing player data: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding player data: %w", err)
	}
	if err := s.vault.Set(ProfileKey, string(raw)); err != nil {
		return fmt.Errorf("saving player data: %w", err)
	}
	return nil
}

func (s *Store) purge() error {
	return errors.Join(s.vault.Delete(TokenKey), s.vault.Delete(ProfileKey))
}

func (s *Store) replace(cred *model.Credential) {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

// playerClaims covers both spellings the API has issued.
type playerClaims struct {
	PlayerID      int64 `json:"player_id"`
	PlayerIDCamel int64 `json:"playerId"`
	jwt.RegisteredClaims
}

// PlayerIDFromToken reads the player id claim without verifying the
// signature.
func PlayerIDFromToken(token string) (int64, error) {
	claims := &playerClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoPlayerID, err)
	}

	if claims.PlayerID != 0 {
		return claims.PlayerID, nil
	}
	if claims.PlayerIDCamel != 0 {
		return claims.PlayerIDCamel, nil
	}
	return 0, ErrNoPlayerID
}
