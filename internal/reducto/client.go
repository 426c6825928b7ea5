// Package reducto talks to the Reducto document platform: file upload,
// parsing of purchase orders and template filling ("edit").
package reducto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"shipdocs/internal/util"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://platform.reducto.ai"

type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// FailureThreshold consecutive upstream failures open the breaker for
	// OpenTimeout.
	FailureThreshold int
	OpenTimeout      time.Duration
	// RequestsPerSecond limits outbound calls; zero means unlimited.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     *zap.Logger
}

// StatusError is a non-2xx response from the platform.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reducto %s error %d: %s", e.Op, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return util.ErrUpstream }

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 60 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	threshold := uint32(opts.FailureThreshold)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reducto",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Client errors are the caller's fault and do not count against
		// the upstream.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500 && se.Code != http.StatusTooManyRequests
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		breaker: breaker,
		limiter: limiter,
		log:     log,
	}
}

// Upload sends a file and returns the platform's file reference.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}
	body, err := c.do(ctx, "upload", http.MethodPost, c.baseURL+"/upload", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}
	var out struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.FileID == "" {
		return "", fmt.Errorf("%w: reducto upload returned no file_id", util.ErrUpstream)
	}
	return out.FileID, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, c.baseURL+path, "application/json", b)
}

// Download fetches a URL returned by the platform (filled documents,
// large parse results). It goes through the breaker like any other call.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, "download", http.MethodGet, url, "", nil)
}

func (c *Client) do(ctx context.Context, op, method, url, contentType string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	started := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rdr)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if strings.HasPrefix(url, c.baseURL) && c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: reducto %s request failed: %v", util.ErrUpstream, op, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read reducto %s response: %v", util.ErrUpstream, op, err)
		}
		if resp.StatusCode >= 300 {
			return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: truncate(string(body), 512)}
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: reducto %s: %v", util.ErrCircuitOpen, op, err)
		}
		c.log.Warn("reducto call failed", zap.String("op", op), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return nil, err
	}
	c.log.Debug("reducto call", zap.String("op", op), zap.Duration("elapsed", time.Since(started)))
	return res.([]byte), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
