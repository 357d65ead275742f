package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/sandeepkv93/session-console/internal/observability"
)

const DefaultBaseURL = "https://ipwho.is"

var ErrEmptyIP = errors.New("empty ip address")

// Client calls the ipwho.is API. Each Lookup is a single GET on
// <base>/<ip>.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds a single lookup.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit throttles outgoing lookups to rps with the given burst.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the provider's answer for ip. A non-nil error means the
// provider could not be reached or answered with something that is not a
// lookup payload; a payload with Success=false is returned without error.
func (c *Client) Lookup(ctx context.Context, ip string) (Response, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Response{}, ErrEmptyIP
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			observability.RecordGeoLookup(ctx, "rate_limited")
			return Response{}, fmt.Errorf("geo lookup rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordGeoLookup(ctx, "transport_error")
		return Response{}, fmt.Errorf("geo lookup request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		observability.RecordGeoLookup(ctx, "transport_error")
		return Response{}, fmt.Errorf("geo lookup read body: %w", err)
	}
	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		observability.RecordGeoLookup(ctx, "transport_error")
		c.logger.WarnContext(ctx, "geo lookup returned non-json payload", "status", resp.StatusCode, "ip", ip)
		return Response{}, fmt.Errorf("geo lookup decode (status %d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		observability.RecordGeoLookup(ctx, "rejected")
		return out, nil
	}
	observability.RecordGeoLookup(ctx, "success")
	return out, nil
}
