// Package authclient talks to the sessiond API on behalf of one signed-in
// session and implements panel.AuthService.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/session-console/internal/domain"
	"github.com/sandeepkv93/session-console/internal/http/response"
	"github.com/sandeepkv93/session-console/internal/panel"
)

var ErrMissingToken = errors.New("access token is required")

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBaseTransport replaces the transport under the bearer and tracing
// layers.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = authTransport(c.tokenSource(), rt)
	}
}

// New returns a client that sends accessToken as a bearer token on every
// request.
func New(baseURL, accessToken string, opts ...Option) (*Client, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Transport: authTransport(src, http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func authTransport(src oauth2.TokenSource, base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{Source: src, Base: otelhttp.NewTransport(base)}
}

func (c *Client) tokenSource() oauth2.TokenSource {
	if t, ok := c.httpClient.Transport.(*oauth2.Transport); ok {
		return t.Source
	}
	return nil
}

func (c *Client) CurrentSession(ctx context.Context) (panel.Session, error) {
	var view domain.SessionView
	if err := c.do(ctx, http.MethodGet, "/api/v1/me/session", nil, &view); err != nil {
		return panel.Session{}, err
	}
	return toPanel(view), nil
}

func (c *Client) ListSessions(ctx context.Context) ([]panel.Session, error) {
	var views []domain.SessionView
	if err := c.do(ctx, http.MethodGet, "/api/v1/me/sessions", nil, &views); err != nil {
		return nil, err
	}
	return toPanelList(views), nil
}

func (c *Client) ListDeviceSessions(ctx context.Context) ([]panel.Session, error) {
	var views []domain.SessionView
	if err := c.do(ctx, http.MethodGet, "/api/v1/me/device-sessions", nil, &views); err != nil {
		return nil, err
	}
	return toPanelList(views), nil
}

func (c *Client) RevokeSession(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/me/sessions/revoke", map[string]string{"token": token}, nil)
}

func (c *Client) RevokeOtherSessions(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/me/sessions/revoke-others", nil, nil)
}

// do performs one API call. An error envelope becomes a *panel.ServiceError;
// anything that prevents reading an envelope is returned wrapped.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	var env response.Envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.WarnContext(ctx, "auth api returned non-envelope payload", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	if !env.Success || resp.StatusCode >= 400 {
		svcErr := &panel.ServiceError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode)}
		if env.Error != nil {
			svcErr.Code = env.Error.Code
			svcErr.Message = env.Error.Message
		}
		return svcErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

func toPanel(v domain.SessionView) panel.Session {
	return panel.Session{
		ID:        v.ID,
		Token:     v.Token,
		IPAddress: v.IPAddress,
		UserAgent: v.UserAgent,
		CreatedAt: v.CreatedAt,
	}
}

func toPanelList(views []domain.SessionView) []panel.Session {
	out := make([]panel.Session, 0, len(views))
	for _, v := range views {
		out = append(out, toPanel(v))
	}
	return out
}
