package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const DefaultTimeout = 30 * time.Second

// Authenticator supplies bearer tokens and performs the single refresh
// allowed after the server rejects one.
type Authenticator interface {
	TokenSource(ctx context.Context) oauth2.TokenSource
	ForceRefresh(ctx context.Context) (string, error)
}

type Client struct {
	baseURL   *url.URL
	auth      Authenticator
	userAgent string
	timeout   time.Duration
	tlsConfig *tls.Config
	log       *zap.SugaredLogger
	rest      *resty.Client
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent: "unisrv-cli",
		timeout:   DefaultTimeout,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}

	c.rest = resty.New().
		SetBaseURL(c.baseURL.String()).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent).
		SetLogger(c.log)
	if c.tlsConfig != nil {
		c.rest.SetTLSClientConfig(c.tlsConfig)
	}
	c.rest.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		c.log.Debugw("API request",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"duration", resp.Time())
		return nil
	})
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("invalid server %q: scheme must be http or https", server)
		}
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		c.baseURL = parsed
		return nil
	}
}

func WithAuthenticator(auth Authenticator) Option {
	return func(c *Client) error {
		c.auth = auth
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig, err := loadTLSConfig(caFile, insecureSkipTLSVerify)
		if err != nil {
			return err
		}
		c.tlsConfig = tlsConfig
		return nil
	}
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure}
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// do performs an authenticated request. A 401 triggers one token refresh and
// one retry.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.auth == nil {
		return fmt.Errorf("not logged in: %w", apierrors.ErrAuthenticationExpired)
	}
	tok, err := c.auth.TokenSource(ctx).Token()
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, method, endpoint, body, bearer(tok))
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		c.log.Debugw("Access token rejected, refreshing session", "endpoint", endpoint)
		access, err := c.auth.ForceRefresh(ctx)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, endpoint, body, bearer(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}))
		if err != nil {
			return err
		}
	}
	return decodeResponse(resp, out)
}

func bearer(tok *oauth2.Token) func(*resty.Request) {
	return func(r *resty.Request) {
		r.SetAuthScheme(tok.Type()).SetAuthToken(tok.AccessToken)
	}
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any, authorize func(*resty.Request)) (*resty.Response, error) {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if authorize != nil {
		authorize(req)
	}
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &apierrors.TransportError{Op: method + " " + endpoint, Err: err}
	}
	return resp, nil
}

func decodeResponse(resp *resty.Response, out any) error {
	if resp.StatusCode() >= 400 {
		return decodeError(resp)
	}
	body := resp.Body()
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *resty.Response) error {
	var apiErr struct {
		Reason string `json:"reason"`
		Error  string `json:"error"`
	}
	body := resp.Body()
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Reason)
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Error)
	}
	if msg == "" && !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &apierrors.HTTPError{StatusCode: resp.StatusCode(), Message: msg}
}
