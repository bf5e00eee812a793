package session_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/credential"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/session"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

func TestSetNotifiesAndPersists(t *testing.T) {
	t.Parallel()

	vault := credential.NewMemory()
	store := session.New(vault)

	var changes []session.Change
	store.Subscribe(func(c session.Change) { changes = append(changes, c) })

	require.NoError(t, store.Set("abc", &model.Profile{PlayerID: 7, Name: "Ann"}))

	cred, ok := store.Credential()
	require.True(t, ok)
	require.Equal(t, int64(7), cred.PlayerID)
	require.Equal(t, "Ann", cred.DisplayName())

	require.Len(t, changes, 1)
	require.True(t, changes[0].Authenticated)

	// A second process sees the same session.
	restored, ok := session.New(vault).Load()
	require.True(t, ok)
	require.Equal(t, "abc", restored.Token)
	require.Equal(t, int64(7), restored.PlayerID)
}

func TestSetReadsPlayerFromToken(t *testing.T) {
	t.Parallel()

	store := session.New(credential.NewMemory())
	require.NoError(t, store.Set(signedToken(t, jwt.MapClaims{"player_id": 42}), nil))

	playerID, ok := store.PlayerID()
	require.True(t, ok)
	require.Equal(t, int64(42), playerID)
}

func TestSetRejectsBadInput(t *testing.T) {
	t.Parallel()

	store := session.New(credential.NewMemory())

	require.ErrorIs(t, store.Set("", nil), session.ErrEmptyToken)
	require.ErrorIs(t, store.Set("not-a-jwt", nil), session.ErrNoPlayerID)

	_, ok := store.Token()
	require.False(t, ok)
}

func TestLoadDiscardsCorruptProfile(t *testing.T) {
	t.Parallel()

	vault := credential.NewMemory()
	require.NoError(t, vault.Set(session.TokenKey, "abc"))
	require.NoError(t, vault.Set(session.ProfileKey, "{not json"))

	_, ok := session.New(vault).Load()
	require.False(t, ok)

	_, err := vault.Get(session.TokenKey)
	require.ErrorIs(t, err, credential.ErrNotFound)
}

func TestClearNotifiesOnlyWhenSignedIn(t *testing.T) {
	t.Parallel()

	store := session.New(credential.NewMemory())

	var changes []session.Change
	store.Subscribe(func(c session.Change) { changes = append(changes, c) })

	require.NoError(t, store.Clear())
	require.Empty(t, changes)

	require.NoError(t, store.Set("abc", &model.Profile{PlayerID: 1}))
	require.NoError(t, store.Clear())
	require.Len(t, changes, 2)
	require.False(t, changes[1].Authenticated)
	require.Equal(t, int64(1), changes[1].Credential.PlayerID)

	_, ok := store.Token()
	require.False(t, ok)
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	t.Parallel()

	store := session.New(credential.NewMemory())
	require.ErrorIs(t, store.UpdateProfile(model.Profile{Name: "Ann"}), session.ErrNotSignedIn)

	require.NoError(t, store.Set("abc", &model.Profile{PlayerID: 3}))
	require.NoError(t, store.UpdateProfile(model.Profile{PlayerID: 3, Name: "Ann"}))

	cred, _ := store.Credential()
	require.Equal(t, "Ann", cred.DisplayName())
}

func TestPlayerIDFromTokenCamelCase(t *testing.T) {
	t.Parallel()

	id, err := session.PlayerIDFromToken(signedToken(t, jwt.MapClaims{"playerId": 9}))
	require.NoError(t, err)
	require.Equal(t, int64(9), id)

	_, err = session.PlayerIDFromToken(signedToken(t, jwt.MapClaims{"sub": "x"}))
	require.ErrorIs(t, err, session.ErrNoPlayerID)
}
