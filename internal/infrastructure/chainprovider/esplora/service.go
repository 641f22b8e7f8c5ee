package esplora

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tdex-network/custody/internal/core/ports"
	"go.uber.org/ratelimit"
)

const (
	providerName = "esplora"

	// DefaultPollInterval is the interval between two tip polls.
	DefaultPollInterval = 30 * time.Second
	// DefaultConfTarget is the fee estimate target, in blocks.
	DefaultConfTarget = 6

	defaultRequestTimeout = 30 * time.Second
)

// Opts ...
type Opts struct {
	URL string
	// RequestsPerSecond paces every request made to the API. Zero means
	// unlimited.
	RequestsPerSecond int
	PollInterval      time.Duration
	ConfTarget        int
	RequestTimeout    time.Duration
}

func (o Opts) validate() error {
	if o.URL == "" {
		return fmt.Errorf("missing url")
	}
	if o.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}
	return nil
}

type esplora struct {
	apiURL       string
	client       *http.Client
	limiter      ratelimit.Limiter
	pollInterval time.Duration
	confTarget   int
}

// NewProvider returns a ChainProvider backed by an esplora REST API. The API
// is reached once to make sure it is up.
func NewProvider(opts Opts) (ports.ChainProvider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	confTarget := opts.ConfTarget
	if confTarget <= 0 {
		confTarget = DefaultConfTarget
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	service := &esplora{
		apiURL:       strings.TrimSuffix(opts.URL, "/"),
		client:       &http.Client{Timeout: timeout},
		limiter:      limiter,
		pollInterval: pollInterval,
		confTarget:   confTarget,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := service.getTipHeight(ctx); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return service, nil
}

func (e *esplora) Close() {
	e.client.CloseIdleConnections()
}

// request performs a paced http call and returns status and body of the
// response.
func (e *esplora) request(
	ctx context.Context, method, path, body string, header map[string]string,
) (int, string, error) {
	e.limiter.Take()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.apiURL+path, reader)
	if err != nil {
		return 0, "", err
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	res, err := e.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer res.Body.Close()

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, "", err
	}
	return res.StatusCode, string(buf), nil
}

// get returns the body of a successful GET request.
func (e *esplora) get(ctx context.Context, path string) (string, error) {
	status, resp, err := e.request(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &APIError{Status: status, Message: resp}
	}
	return resp, nil
}

// APIError is returned for any non 200 response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("esplora: status %d: %s", e.Status, strings.TrimSpace(e.Message))
}
