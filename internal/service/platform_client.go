package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/ratelimit"
	"golang.org/x/oauth2"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const maxErrorBodyBytes = 64 << 10

// ClientOptions tunes the HTTP behavior shared by all platform adapters.
type ClientOptions struct {
	Timeout        time.Duration
	RequestsPerSec int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Transport      http.RoundTripper
}

func ClientOptionsFromConfig(cfg config.Platforms) ClientOptions {
	return ClientOptions{
		Timeout:        cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.PollMaxRetries,
		RetryBaseDelay: 200 * time.Millisecond,
		RetryMaxDelay:  5 * time.Second,
	}
}

// platformClient performs authenticated JSON calls against one platform API.
// Only idempotent reads go through the retry executor; creates and publishes
// are attempted exactly once so a lost response cannot double-post.
type platformClient struct {
	platform string
	baseURL  string
	timeout  time.Duration
	base     http.RoundTripper
	limiter  ratelimit.Limiter
	reads    failsafe.Executor[*http.Response]
}

func newPlatformClient(platform, baseURL string, opts ClientOptions) *platformClient {
	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSec > 0 {
		limiter = ratelimit.New(opts.RequestsPerSec)
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(opts.RetryBaseDelay, opts.RetryMaxDelay).
		WithMaxRetries(opts.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ *http.Response, err error) bool {
			return isTransient(err)
		}).
		Build()

	return &platformClient{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  opts.Timeout,
		base:     base,
		limiter:  limiter,
		reads:    failsafe.With[*http.Response](retry),
	}
}

func (c *platformClient) httpClient(accessToken string) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.base,
		},
	}
}

// postJSON sends a single, non-retried write.
func (c *platformClient) postJSON(ctx context.Context, accessToken, path string, body, out any) error {
	return c.call(ctx, accessToken, http.MethodPost, path, nil, body, out, false)
}

// get performs a retried read.
func (c *platformClient) get(ctx context.Context, accessToken, path string, query url.Values, out any) error {
	return c.call(ctx, accessToken, http.MethodGet, path, query, nil, out, true)
}

// readJSON performs a retried read that the platform exposes as a POST.
func (c *platformClient) readJSON(ctx context.Context, accessToken, path string, body, out any) error {
	return c.call(ctx, accessToken, http.MethodPost, path, nil, body, out, true)
}

func (c *platformClient) call(ctx context.Context, accessToken, method, path string, query url.Values, body, out any, retry bool) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("error marshalling payload: %w", err)
		}
	}

	client := c.httpClient(accessToken)
	attempt := func() (*http.Response, error) {
		c.limiter.Take()
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s request aborted: %w", c.platform, err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request error: %w", c.platform, err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			defer resp.Body.Close()
			return nil, c.decodeError(resp)
		}
		return resp, nil
	}

	var resp *http.Response
	var err error
	if retry {
		var lastErr error
		resp, err = c.reads.WithContext(ctx).Get(func() (*http.Response, error) {
			r, e := attempt()
			lastErr = e
			return r, e
		})
		if err != nil && lastErr != nil {
			err = lastErr
		}
	} else {
		resp, err = attempt()
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error parsing %s response: %w", c.platform, err)
	}
	return nil
}

// decodeError turns an error response into a PlatformError, reading the Graph
// or TikTok error envelope when present.
func (c *platformClient) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	perr := &PlatformError{Platform: c.platform, StatusCode: resp.StatusCode}

	var graph transfer.GraphErrorResponse
	if json.Unmarshal(raw, &graph) == nil && graph.Error.Message != "" {
		perr.Message = graph.Error.Message
		if graph.Error.ErrorUserMsg != "" {
			perr.Message += " (" + graph.Error.ErrorUserMsg + ")"
		}
		if graph.Error.Code != 0 {
			perr.Code = fmt.Sprintf("%d", graph.Error.Code)
		}
		return perr
	}

	var tiktok struct {
		Error transfer.TiktokError `json:"error"`
	}
	if json.Unmarshal(raw, &tiktok) == nil && tiktok.Error.Message != "" {
		perr.Code = tiktok.Error.Code
		perr.Message = tiktok.Error.Message
		return perr
	}

	perr.Message = strings.TrimSpace(string(raw))
	if perr.Message == "" {
		perr.Message = http.StatusText(resp.StatusCode)
	}
	return perr
}

// isTransient reports whether a read should be retried: network failures,
// throttling and server errors.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr.StatusCode == http.StatusTooManyRequests || perr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
