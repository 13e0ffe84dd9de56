package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/auth"
)

type LoginResponse struct {
	UserID           string    `json:"user_id"`
	Token            string    `json:"token"`
	ExpiresAt        Timestamp `json:"expires_at"`
	RefreshSessionID string    `json:"refresh_session_id"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt Timestamp `json:"refresh_expires_at"`
}

func (r LoginResponse) Session() auth.Session {
	return auth.Session{
		UserID:           r.UserID,
		AccessToken:      r.Token,
		ExpiresAt:        r.ExpiresAt.Time,
		RefreshSessionID: r.RefreshSessionID,
		RefreshToken:     r.RefreshToken,
		RefreshExpiresAt: r.RefreshExpiresAt.Time,
	}
}

type refreshRequest struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Login exchanges username and password for a new session. Rejected
// credentials are reported as a validation error, not as an expired session.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Session, error) {
	resp, err := c.send(ctx, http.MethodPost, "/auth/login/basic", nil, func(r *resty.Request) {
		r.SetBasicAuth(username, password)
	})
	if err != nil {
		return auth.Session{}, err
	}
	var out LoginResponse
	if err := decodeResponse(resp, &out); err != nil {
		var httpErr *apierrors.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return auth.Session{}, apierrors.Validation("invalid credentials: %s", httpErr.Message)
		}
		return auth.Session{}, err
	}
	return out.Session(), nil
}

// RefreshSession implements auth.Refresher.
func (c *Client) RefreshSession(ctx context.Context, s auth.Session) (auth.Session, error) {
	body := refreshRequest{ID: s.RefreshSessionID, Token: s.RefreshToken}
	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", body, func(r *resty.Request) {
		r.SetAuthToken(s.RefreshToken)
	})
	if err != nil {
		return auth.Session{}, err
	}
	var out LoginResponse
	if err := decodeResponse(resp, &out); err != nil {
		return auth.Session{}, err
	}
	return out.Session(), nil
}
