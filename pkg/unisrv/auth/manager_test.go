package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unisrv/unisrv-cli/pkg/system"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
)

type fakeRefresher struct {
	calls int
	next  Session
	err   error
}

func (f *fakeRefresher) RefreshSession(_ context.Context, s Session) (Session, error) {
	f.calls++
	if f.err != nil {
		return Session{}, f.err
	}
	if s.RefreshToken == "" {
		return Session{}, errors.New("missing refresh token")
	}
	return f.next, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, store Store, refresher Refresher) *Manager {
	t.Helper()
	m := NewManager(store, system.NewTestLogger(t))
	m.Refresher = refresher
	m.Now = func() time.Time { return fixedNow }
	return m
}

func activeSession(expiresIn time.Duration) Session {
	return Session{
		UserID:           "user-1",
		AccessToken:      "access-old",
		ExpiresAt:        fixedNow.Add(expiresIn),
		RefreshSessionID: "refresh-session",
		RefreshToken:     "refresh-old",
		RefreshExpiresAt: fixedNow.Add(24 * time.Hour),
	}
}

func TestManager_ValidTokenNoRefresh(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(activeSession(time.Hour)))
	refresher := &fakeRefresher{}
	m := newTestManager(t, store, refresher)

	token, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-old", token)
	assert.Zero(t, refresher.calls)
}

func TestManager_ExpiredTokenRefreshesAndPersists(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(activeSession(-time.Minute)))
	refresher := &fakeRefresher{next: Session{
		AccessToken:      "access-new",
		ExpiresAt:        fixedNow.Add(time.Hour),
		RefreshToken:     "refresh-new",
		RefreshExpiresAt: fixedNow.Add(48 * time.Hour),
	}}
	m := newTestManager(t, store, refresher)

	token, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-new", token)
	assert.Equal(t, 1, refresher.calls)

	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "access-new", stored.AccessToken)
	assert.Equal(t, "refresh-new", stored.RefreshToken)
	assert.Equal(t, "refresh-session", stored.RefreshSessionID, "session id carried over")
	assert.Equal(t, "user-1", stored.UserID)

	// second call uses the refreshed token without another exchange
	token, err = m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-new", token)
	assert.Equal(t, 1, refresher.calls)
}

func TestManager_TokenWithinMarginRefreshes(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(activeSession(10*time.Second)))
	refresher := &fakeRefresher{next: Session{AccessToken: "access-new", RefreshToken: "r", ExpiresAt: fixedNow.Add(time.Hour)}}
	m := newTestManager(t, store, refresher)

	token, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-new", token)
}

func TestManager_RejectedRefreshClearsStore(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(activeSession(-time.Minute)))
	refresher := &fakeRefresher{err: fmt.Errorf("refresh: %w", &apierrors.HTTPError{StatusCode: http.StatusUnauthorized, Message: "revoked"})}
	m := newTestManager(t, store, refresher)

	_, err := m.AccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrAuthenticationExpired)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = m.AccessToken(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrAuthenticationExpired)

	// a fresh invocation sees the cleared store too
	_, err = newTestManager(t, store, refresher).AccessToken(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrAuthenticationExpired)
	assert.Equal(t, 1, refresher.calls)
}

func TestManager_TransportFailureKeepsSession(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(activeSession(-time.Minute)))
	refresher := &fakeRefresher{err: &apierrors.TransportError{Op: "POST /auth/refresh", Err: errors.New("connection refused")}}
	m := newTestManager(t, store, refresher)

	_, err := m.AccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrServiceUnavailable)
	assert.NotErrorIs(t, err, apierrors.ErrAuthenticationExpired)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestManager_ExpiredRefreshTokenSkipsNetwork(t *testing.T) {
	store := &MemoryStore{}
	s := activeSession(-time.Minute)
	s.RefreshExpiresAt = fixedNow.Add(-time.Second)
	require.NoError(t, store.Save(s))
	refresher := &fakeRefresher{}
	m := newTestManager(t, store, refresher)

	_, err := m.AccessToken(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrAuthenticationExpired)
	assert.Zero(t, refresher.calls)
	stored, _ := store.Load()
	assert.Nil(t, stored)
}

func TestManager_NoSession(t *testing.T) {
	refresher := &fakeRefresher{}
	m := newTestManager(t, &MemoryStore{}, refresher)

	_, err := m.AccessToken(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrAuthenticationExpired)
	_, err = m.ForceRefresh(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrAuthenticationExpired)
	assert.Zero(t, refresher.calls)
}

func TestManager_ForceRefreshOnlyOnce(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(activeSession(time.Hour)))
	refresher := &fakeRefresher{next: Session{AccessToken: "access-new", RefreshToken: "r", ExpiresAt: fixedNow.Add(time.Hour)}}
	m := newTestManager(t, store, refresher)

	token, err := m.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-new", token)

	_, err = m.ForceRefresh(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrAuthenticationExpired)
	assert.Equal(t, 1, refresher.calls)

	stored, _ := store.Load()
	assert.NotNil(t, stored, "second 401 leaves the refreshed session in place")
}

func TestManager_LoginLogout(t *testing.T) {
	store := &MemoryStore{}
	m := newTestManager(t, store, nil)

	require.Error(t, m.Login(Session{AccessToken: "only-access"}))
	require.NoError(t, m.Login(activeSession(time.Hour)))

	token, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-old", token)

	require.NoError(t, m.Logout())
	s, err := m.Session()
	require.NoError(t, err)
	assert.Nil(t, s)
	stored, _ := store.Load()
	assert.Nil(t, stored)
}

func TestManager_TokenSource(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(activeSession(time.Hour)))
	m := newTestManager(t, store, nil)

	tok, err := m.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "access-old", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Equal(t, fixedNow.Add(time.Hour), tok.Expiry)
}
