package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/types"
)

// maxBodySize caps directory listings and metadata documents
const maxBodySize = 32 << 20

type client struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures the client
type Option func(*client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) {
		cl.httpClient = c
	}
}

// New creates an UpstreamClient. Requests are not retried.
func New(opts ...Option) interfaces.UpstreamClient {
	c := &client{
		httpClient: http.DefaultClient,
		userAgent:  types.AppName + "/" + types.Version + " upstream-check",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) do(ctx context.Context, method, url string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		cancel()
		return nil, nil, goerr.Wrap(err, "failed to create request", goerr.V("url", url))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, goerr.Wrap(err, "request failed", goerr.V("url", url), goerr.V("method", method))
	}
	return resp, cancel, nil
}

func (c *client) get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	resp, cancel, err := c.do(ctx, http.MethodGet, url, timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("unexpected HTTP status",
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response body", goerr.V("url", url))
	}
	return body, nil
}

func (c *client) GetJSON(ctx context.Context, url string, timeout time.Duration, out any) error {
	body, err := c.get(ctx, url, timeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return goerr.Wrap(err, "failed to decode JSON response", goerr.V("url", url))
	}
	return nil
}

// GetText returns the body as text; invalid UTF-8 is passed through as-is
func (c *client) GetText(ctx context.Context, url string, timeout time.Duration) (string, error) {
	body, err := c.get(ctx, url, timeout)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *client) Head(ctx context.Context, url string, timeout time.Duration) (int, error) {
	resp, cancel, err := c.do(ctx, http.MethodHead, url, timeout)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
