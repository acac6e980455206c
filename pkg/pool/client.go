package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultFlexpoolURL  = "https://api.flexpool.io"
	defaultEthermineURL = "https://api.ethermine.org"
)

// StatusSource returns the status of one worker.
type StatusSource interface {
	Query(ctx context.Context, q Query) (*WorkerStatus, error)
}

// HTTPClient queries pool status APIs over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	baseURLs   map[Kind]string
	limiters   map[Kind]*rate.Limiter
	timeout    time.Duration
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithTimeout bounds each HTTP request. Time spent waiting on the rate
// limiter is bounded only by the caller's context.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.timeout = timeout
	}
}

// WithBaseURL points a provider at a different API root.
func WithBaseURL(kind Kind, baseURL string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURLs[kind] = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit limits requests per provider. A limit of zero or less disables limiting.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if perSecond <= 0 {
			c.limiters = map[Kind]*rate.Limiter{}
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiters = map[Kind]*rate.Limiter{
			KindFlexpool:  rate.NewLimiter(rate.Limit(perSecond), burst),
			KindEthermine: rate.NewLimiter(rate.Limit(perSecond), burst),
		}
	}
}

// NewClient creates a pool status client.
func NewClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURLs: map[Kind]string{
			KindFlexpool:  defaultFlexpoolURL,
			KindEthermine: defaultEthermineURL,
		},
		limiters: map[Kind]*rate.Limiter{},
		timeout:  15 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Query fetches the status of q.Worker from the pool named by q.Kind.
func (c *HTTPClient) Query(ctx context.Context, q Query) (*WorkerStatus, error) {
	switch q.Kind {
	case KindFlexpool:
		return c.queryFlexpool(ctx, q)
	case KindEthermine:
		return c.queryEthermine(ctx, q)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, q.Kind)
	}
}

// getJSON performs a rate limited GET and decodes the JSON body into result.
func (c *HTTPClient) getJSON(ctx context.Context, kind Kind, endpoint string, result interface{}) error {
	if limiter, ok := c.limiters[kind]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return &RequestError{Kind: kind, Endpoint: endpoint, Message: "rate limiter", Err: err}
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &RequestError{Kind: kind, Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Kind: kind, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{
			Kind:       kind,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &RequestError{Kind: kind, Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

// Ensure HTTPClient implements StatusSource.
var _ StatusSource = (*HTTPClient)(nil)
