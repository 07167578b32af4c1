package background

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL serves keyless random photos.
	DefaultBaseURL = "https://source.unsplash.com"
	// DefaultAPIURL is the official Unsplash API, used with an access key.
	DefaultAPIURL = "https://api.unsplash.com"

	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second

	userAgentProduct   = "quotemaker"
	defaultHTTPTimeout = 30 * time.Second
	maxImageBytes      = 20 << 20 // 20 MiB guard
	maxJSONBytes       = 1 << 20
)

// Client fetches random photos from Unsplash.
type Client struct {
	baseURL    string
	apiURL     string
	accessKey  string
	userAgent  string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger

	maxImageBytes int64
}

// ClientOption mutates the client during construction.
type ClientOption func(*Client)

// NewClient builds a client. Without WithAccessKey it uses the keyless source endpoint.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiURL:     DefaultAPIURL,
		userAgent:  buildDefaultUserAgent(),
		http:       &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),

		maxImageBytes: maxImageBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultHTTPTimeout}
	}
	c.baseURL = sanitizeURL(c.baseURL, DefaultBaseURL)
	c.apiURL = sanitizeURL(c.apiURL, DefaultAPIURL)
	return c
}

// WithBaseURL overrides the keyless source host (useful for tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithAPIURL overrides the API host.
func WithAPIURL(apiURL string) ClientOption {
	return func(c *Client) { c.apiURL = apiURL }
}

// WithAccessKey switches the client to the official API.
func WithAccessKey(key string) ClientOption {
	return func(c *Client) { c.accessKey = strings.TrimSpace(key) }
}

// WithHTTPClient installs a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRateLimiter replaces the default limiter of one request per second.
// Pass nil to disable limiting.
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithRetry sets how many times a retryable failure is repeated and the pause
// between attempts.
func WithRetry(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max(maxRetries, 0)
		c.retryDelay = max(delay, 0)
	}
}

// WithUserAgent sets a custom User-Agent string.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger used for retries and downloads.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Fetch downloads a random photo of the requested size.
func (c *Client) Fetch(ctx context.Context, req Request) (*Photo, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, ErrInvalidSize
	}

	imageURL, err := c.imageURL(ctx, req)
	if err != nil {
		return nil, err
	}

	var photo *Photo
	err = c.retry(ctx, func() error {
		data, finalURL, err := c.get(ctx, imageURL, c.maxImageBytes)
		if err != nil {
			return err
		}
		ct := http.DetectContentType(data)
		if !strings.HasPrefix(ct, "image/") {
			return fmt.Errorf("%w (got %s)", ErrNotImage, ct)
		}
		photo = &Photo{Data: data, ContentType: ct, URL: finalURL}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Background downloaded",
		slog.String("url", photo.URL),
		slog.String("content_type", photo.ContentType),
		slog.Int("bytes", len(photo.Data)),
	)
	return photo, nil
}

// imageURL resolves the address of the image bytes. In API mode this costs a
// request to the random photo endpoint.
func (c *Client) imageURL(ctx context.Context, req Request) (string, error) {
	if c.accessKey == "" {
		u := fmt.Sprintf("%s/random/%dx%d", c.baseURL, req.Width, req.Height)
		if q := strings.TrimSpace(req.Query); q != "" {
			u += "?" + url.QueryEscape(q)
		}
		return u, nil
	}

	params := url.Values{}
	params.Set("orientation", "landscape")
	if q := strings.TrimSpace(req.Query); q != "" {
		params.Set("query", q)
	}
	endpoint := c.apiURL + "/photos/random?" + params.Encode()

	var random struct {
		URLs struct {
			Raw string `json:"raw"`
		} `json:"urls"`
	}
	err := c.retry(ctx, func() error {
		body, _, err := c.get(ctx, endpoint, maxJSONBytes)
		if err != nil {
			return err
		}
		if err = json.Unmarshal(body, &random); err != nil {
			return fmt.Errorf("background: decode random photo: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if random.URLs.Raw == "" {
		return "", fmt.Errorf("background: random photo response has no raw url")
	}

	raw, err := url.Parse(random.URLs.Raw)
	if err != nil {
		return "", fmt.Errorf("background: parse photo url: %w", err)
	}
	q := raw.Query()
	q.Set("w", strconv.Itoa(req.Width))
	q.Set("h", strconv.Itoa(req.Height))
	q.Set("fit", "crop")
	raw.RawQuery = q.Encode()
	return raw.String(), nil
}

// retry runs fn until it succeeds, fails with a non-retryable error or the
// retry budget is spent.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= c.maxRetries {
			return fmt.Errorf("background: giving up after %d attempts: %w", attempt+1, err)
		}

		c.logger.WarnContext(ctx, "Background request failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.maxRetries),
			slog.Duration("delay", c.retryDelay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

// get performs one rate-limited GET and returns the body and the final URL
// after redirects.
func (c *Client) get(ctx context.Context, u string, limit int64) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("background: rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("background: build request: %w", err)
	}
	if ua := strings.TrimSpace(c.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if c.accessKey != "" {
		req.Header.Set("Authorization", "Client-ID "+c.accessKey)
		req.Header.Set("Accept-Version", "v1")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("background: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("background: read response: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, "", fmt.Errorf("%w: more than %d bytes from %s", ErrTooLarge, limit, u)
	}

	c.logger.DebugContext(ctx, "Background response",
		slog.String("url", u),
		slog.Int("status", resp.StatusCode),
		slog.String("content_type", resp.Header.Get("Content-Type")),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", buildAPIError(resp.StatusCode, raw)
	}
	return raw, resp.Request.URL.String(), nil
}

func sanitizeURL(u, fallback string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return fallback
	}
	return strings.TrimRight(u, "/")
}

func buildDefaultUserAgent() string {
	return fmt.Sprintf("%s (Go%s; %s/%s)",
		userAgentProduct, strings.TrimPrefix(runtime.Version(), "go"), runtime.GOOS, runtime.GOARCH)
}
