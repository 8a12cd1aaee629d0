// Package remote is a rate-limited client for a booru-style content
// API. Requests go through a bounded work queue served by a fixed
// worker pool; every worker shares one rate limiter and a cap on
// simultaneous in-flight requests, so callers can fan out without
// tripping the server's limits.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"mediastash/internal/models"
)

// Config carries the connection settings for one API endpoint.
type Config struct {
	BaseURL   string
	Username  string
	APIKey    string
	UserAgent string

	Workers         int           // worker pool size, default 4
	MaxInFlight     int64         // simultaneous requests, default 2
	RequestInterval time.Duration // minimum spacing between requests, default 1s
	QueueSize       int           // pending task bound, default 32
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Workers < 1 {
		out.Workers = 4
	}
	if out.MaxInFlight < 1 {
		out.MaxInFlight = 2
	}
	if out.RequestInterval <= 0 {
		out.RequestInterval = time.Second
	}
	if out.QueueSize < 1 {
		out.QueueSize = 32
	}
	return out
}

type task struct {
	fn   func()
	done chan struct{}
}

// Client issues throttled requests against the remote API.
type Client struct {
	cfg     Config
	http    *http.Client
	queue   chan task
	limiter *rate.Limiter
	sem     *semaphore.Weighted

	group     *errgroup.Group
	cancel    context.CancelFunc
	closing   chan struct{}
	closeOnce sync.Once

	// mu orders enqueue against shutdown: once closed is set no task
	// enters the queue, so the worker drain leaves nothing behind.
	mu     sync.RWMutex
	closed bool
}

// New starts the worker pool and returns a ready client.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 2 * time.Minute},
		queue:   make(chan task, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		cancel:  cancel,
		closing: make(chan struct{}),
	}
	c.group, _ = errgroup.WithContext(ctx)
	for range cfg.Workers {
		c.group.Go(func() error {
			c.work(ctx)
			return nil
		})
	}
	return c
}

// Close drains queued work, stops the workers, and releases idle
// connections. Safe to call more than once and before any request ran.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.closing)
		c.mu.Unlock()
		_ = c.group.Wait()
		c.cancel()
		c.http.CloseIdleConnections()
	})
}

func (c *Client) work(ctx context.Context) {
	for {
		select {
		case t := <-c.queue:
			c.process(ctx, t)
		case <-c.closing:
			for {
				select {
				case t := <-c.queue:
					c.process(ctx, t)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// process gates one task behind the in-flight permit and the shared
// rate limiter. The done channel is always closed so submitters never
// hang, even when shutdown interrupts the gating.
func (c *Client) process(ctx context.Context, t task) {
	defer close(t.done)
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer c.sem.Release(1)
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	t.fn()
}

// submit enqueues fn and waits for a worker to run it. The read lock
// is held across the enqueue so a task can never slip into the queue
// after Close has begun; a blocked enqueue still drains because the
// workers keep consuming until the lock is released.
func (c *Client) submit(ctx context.Context, fn func()) error {
	ran := false
	t := task{done: make(chan struct{})}
	t.fn = func() { ran = true; fn() }

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	select {
	case c.queue <- t:
		c.mu.RUnlock()
	case <-ctx.Done():
		c.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-t.done:
		if !ran {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SearchPosts queries posts.json and validates the response shape
// before returning it.
func (c *Client) SearchPosts(ctx context.Context, q Query) (*models.PostsResponse, error) {
	params := url.Values{}
	if tags := q.BuildTags(); tags != "" {
		params.Set("tags", tags)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp models.PostsResponse
	var reqErr error
	if err := c.submit(ctx, func() {
		reqErr = c.getJSON(ctx, "posts.json", params, &resp)
	}); err != nil {
		return nil, err
	}
	if reqErr != nil {
		return nil, reqErr
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("malformed posts response: %w", err)
	}
	return &resp, nil
}

// SearchTags queries tags.json for names matching the given pattern.
func (c *Client) SearchTags(ctx context.Context, nameMatches string, limit int) ([]models.Tag, error) {
	params := url.Values{}
	params.Set("search[name_matches]", nameMatches)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var raw json.RawMessage
	var reqErr error
	if err := c.submit(ctx, func() {
		reqErr = c.getJSON(ctx, "tags.json", params, &raw)
	}); err != nil {
		return nil, err
	}
	if reqErr != nil {
		return nil, reqErr
	}
	return decodeTags(raw)
}

// decodeTags handles both payload shapes the endpoint produces: a bare
// array for matches, and {"tags": []} when nothing matched.
func decodeTags(raw json.RawMessage) ([]models.Tag, error) {
	var tags []models.Tag
	if err := json.Unmarshal(raw, &tags); err == nil {
		return tags, nil
	}
	var wrapped struct {
		Tags []models.Tag `json:"tags"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("malformed tags response: %w", err)
	}
	return wrapped.Tags, nil
}

// Download fetches a file URL through the same queue and throttling as
// API calls.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	var body []byte
	var reqErr error
	if err := c.submit(ctx, func() {
		body, reqErr = c.getBytes(ctx, fileURL)
	}); err != nil {
		return nil, err
	}
	return body, reqErr
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	u, err := url.JoinPath(c.cfg.BaseURL, endpoint)
	if err != nil {
		return fmt.Errorf("bad endpoint %q: %w", endpoint, err)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := c.do(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) getBytes(ctx context.Context, fileURL string) ([]byte, error) {
	resp, err := c.do(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.APIKey)
	}
	return c.http.Do(req)
}

// checkStatus maps non-2xx responses to typed errors, pulling the
// server's reason out of the body when one is present.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Reason: responseReason(resp)}
}

func responseReason(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Reason != "" {
			return payload.Reason
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}
