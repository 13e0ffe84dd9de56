package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is how long before expiry an access token is treated as stale.
const DefaultExpiryMargin = 30 * time.Second

// Refresher exchanges the refresh credentials of a Session for a new Session.
type Refresher interface {
	RefreshSession(ctx context.Context, s Session) (Session, error)
}

// Manager hands out valid access tokens for a single CLI invocation. It
// refreshes at most once per lifetime and persists the result.
type Manager struct {
	Store     Store
	Refresher Refresher
	Margin    time.Duration
	Now       func() time.Time
	Log       *zap.SugaredLogger

	session   *Session
	loaded    bool
	refreshed bool
}

func NewManager(store Store, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		Store:  store,
		Margin: DefaultExpiryMargin,
		Now:    time.Now,
		Log:    log,
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) load() (*Session, error) {
	if m.loaded {
		return m.session, nil
	}
	s, err := m.Store.Load()
	if err != nil {
		return nil, err
	}
	m.session = s
	m.loaded = true
	return s, nil
}

// Session returns the current session, or nil when logged out.
func (m *Manager) Session() (*Session, error) {
	return m.load()
}

// AccessToken returns a token that is valid for at least Margin, refreshing
// the session if needed.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	s, err := m.load()
	if err != nil {
		return "", err
	}
	if s == nil || s.AccessToken == "" {
		return "", fmt.Errorf("not logged in: %w", apierrors.ErrAuthenticationExpired)
	}
	if m.now().Add(m.Margin).Before(s.ExpiresAt) {
		return s.AccessToken, nil
	}
	m.Log.Debugw("Access token expired or about to expire", "expiresAt", s.ExpiresAt)
	return m.ForceRefresh(ctx)
}

// ForceRefresh exchanges the refresh token for a new session regardless of
// the current expiry. A second call within the same Manager fails.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	if m.refreshed {
		return "", fmt.Errorf("token rejected after refresh: %w", apierrors.ErrAuthenticationExpired)
	}
	s, err := m.load()
	if err != nil {
		return "", err
	}
	if s == nil || s.RefreshToken == "" {
		return "", fmt.Errorf("not logged in: %w", apierrors.ErrAuthenticationExpired)
	}
	m.refreshed = true

	if !s.RefreshExpiresAt.IsZero() && !m.now().Before(s.RefreshExpiresAt) {
		m.Log.Debugw("Refresh token expired", "refreshExpiresAt", s.RefreshExpiresAt)
		return "", m.expire(errors.New("refresh token expired"))
	}
	if m.Refresher == nil {
		return "", errors.New("no refresher configured")
	}

	next, err := m.Refresher.RefreshSession(ctx, *s)
	if err != nil {
		if rejected(err) {
			return "", m.expire(err)
		}
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}
	if next.RefreshSessionID == "" {
		next.RefreshSessionID = s.RefreshSessionID
	}
	if next.UserID == "" {
		next.UserID = s.UserID
	}
	if err := m.Store.Save(next); err != nil {
		return "", err
	}
	m.session = &next
	m.Log.Debugw("Session refreshed", "expiresAt", next.ExpiresAt)
	return next.AccessToken, nil
}

// Login adopts and persists a freshly issued session.
func (m *Manager) Login(s Session) error {
	if s.AccessToken == "" || s.RefreshToken == "" {
		return errors.New("login response did not contain tokens")
	}
	if err := m.Store.Save(s); err != nil {
		return err
	}
	m.session = &s
	m.loaded = true
	m.refreshed = false
	return nil
}

// Logout removes any stored session.
func (m *Manager) Logout() error {
	m.session = nil
	m.loaded = true
	return m.Store.Clear()
}

func (m *Manager) expire(cause error) error {
	m.session = nil
	if err := m.Store.Clear(); err != nil {
		m.Log.Warnw("Failed to clear stored session", "error", err)
	}
	return fmt.Errorf("%w (%v)", apierrors.ErrAuthenticationExpired, cause)
}

func rejected(err error) bool {
	return errors.Is(err, apierrors.ErrAuthenticationExpired) ||
		errors.Is(err, apierrors.ErrValidation) ||
		errors.Is(err, apierrors.ErrNotFound)
}

// TokenSource adapts the manager to oauth2 for callers bound to ctx.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	access, err := s.m.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if s.m.session != nil {
		tok.Expiry = s.m.session.ExpiresAt
	}
	return tok, nil
}
