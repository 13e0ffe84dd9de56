package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"golang.org/x/oauth2"
)

const (
	LogTypeState  = "state"
	LogTypeSystem = "system"
	LogTypeStdout = "stdout"
	LogTypeStderr = "stderr"

	InitStateOnline                = "online"
	InitStatePullingContainerImage = "pulling_container_image"
	InitStateExecutingContainer    = "executing_container"
)

// LogMessage is one frame of an instance log stream.
type LogMessage struct {
	LogType     string `json:"log_type"`
	TimestampMS int64  `json:"timestamp_ms"`
	Message     string `json:"message,omitempty"`
	State       string `json:"state,omitempty"`
}

func (m LogMessage) Time() time.Time {
	return time.UnixMilli(m.TimestampMS).UTC()
}

// StreamLogs follows the log stream of an instance and calls handle for every
// message. It returns nil when the server closes the stream or ctx is
// cancelled.
func (s *InstanceService) StreamLogs(ctx context.Context, id uuid.UUID, handle func(LogMessage) error) error {
	c := s.client
	if c.auth == nil {
		return fmt.Errorf("not logged in: %w", apierrors.ErrAuthenticationExpired)
	}
	endpoint, err := c.websocketURL(fmt.Sprintf("/instance/%s/logs/stream", id))
	if err != nil {
		return err
	}
	tok, err := c.auth.TokenSource(ctx).Token()
	if err != nil {
		return err
	}
	conn, resp, err := c.dial(ctx, endpoint, tok)
	if resp != nil && resp.StatusCode == http.StatusUnauthorized {
		access, refreshErr := c.auth.ForceRefresh(ctx)
		if refreshErr != nil {
			return refreshErr
		}
		conn, resp, err = c.dial(ctx, endpoint, &oauth2.Token{AccessToken: access, TokenType: "Bearer"})
	}
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			return fmt.Errorf("stream logs: %w", &apierrors.HTTPError{StatusCode: resp.StatusCode, Message: msg})
		}
		if ctx.Err() != nil {
			return nil
		}
		return &apierrors.TransportError{Op: "stream logs", Err: err}
	}
	defer func() {
		_ = conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if ctx.Err() != nil || errors.As(err, &closeErr) || errors.Is(err, io.EOF) {
				return nil
			}
			return &apierrors.TransportError{Op: "stream logs", Err: err}
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg LogMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to parse log message: %w", err)
		}
		if err := handle(msg); err != nil {
			return err
		}
	}
}

func (c *Client) dial(ctx context.Context, endpoint string, tok *oauth2.Token) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.timeout,
		TLSClientConfig:  c.tlsConfig,
		Proxy:            http.ProxyFromEnvironment,
	}
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return dialer.DialContext(ctx, endpoint, header)
}

func (c *Client) websocketURL(endpoint string) (string, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + endpoint
	return u.String(), nil
}
