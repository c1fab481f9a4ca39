// Package bridge talks to the thin HTTP surface the host page exposes: board
// sampling, move execution, and highlight control.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/board"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 8},
		logger:         zap.NewNop(),
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Locate reports whether the page currently renders a board. Idempotent, so
// transient bridge failures are retried.
func (c *Client) Locate(ctx context.Context) bool {
	var resp boardResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/board", nil, &resp, true); err != nil {
		c.logger.Debug("board locate failed", zap.Error(err))
		return false
	}
	return resp.Found
}

// Sample fetches the current position snapshot. Idempotent and side-effect
// free on the page side, so transient bridge failures are retried.
func (c *Client) Sample(ctx context.Context) (board.Snapshot, error) {
	var resp boardResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/board", nil, &resp, true); err != nil {
		return board.Snapshot{}, err
	}
	if !resp.Found {
		return board.Snapshot{}, ErrNoBoard
	}
	return board.ParseFEN(resp.FEN)
}

// Execute dispatches a move to the page. Never retried: a request that failed
// after reaching the page may still have played the move, and replaying it is
// worse than letting the caller wait for the next trigger. The visual result
// takes unspecified wall-clock time; the caller owns the settle delay.
func (c *Client) Execute(ctx context.Context, move domain.Move) (bool, error) {
	req := moveRequest{Move: move.String()}
	var resp moveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/move", req, &resp, false); err != nil {
		return false, err
	}
	return resp.Accepted, nil
}

// Show asks the page to highlight a suggested move. Fire-and-forget.
func (c *Client) Show(move domain.Move) {
	ctx, cancel := context.WithTimeout(context.Background(), c.defaultTimeout)
	defer cancel()
	req := highlightRequest{Move: move.String()}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/highlight", req, nil, false); err != nil {
		c.logger.Debug("highlight failed", zap.Error(err))
	}
}

// Clear removes any highlight. Fire-and-forget.
func (c *Client) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), c.defaultTimeout)
	defer cancel()
	if err := c.doJSON(ctx, fasthttp.MethodDelete, "/highlight", nil, nil, false); err != nil {
		c.logger.Debug("highlight clear failed", zap.Error(err))
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			body := string(resp.Body())
			err := fmt.Errorf("bridge api error: status=%d body=%s", status, truncate(body, 512))
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
