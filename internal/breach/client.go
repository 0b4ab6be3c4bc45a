package breach

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public range endpoint; the prefix is appended.
	DefaultBaseURL = "https://api.pwnedpasswords.com/range/"
	// DefaultPrefixLength is the number of digest characters sent.
	DefaultPrefixLength = 5
	// DefaultTimeout is used when NewClient receives a nil *http.Client.
	DefaultTimeout = 10 * time.Second
)

// ErrTransport is matched by every *TransportError.
var ErrTransport = errors.New("breach check transport error")

// TransportError reports a network or protocol failure of one check.
type TransportError struct {
	// Op is the failed step: "request", "status" or "read".
	Op string
	// StatusCode is set for Op == "status".
	StatusCode int
	// Err is the underlying cause, if any.
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.Op == "status":
		return fmt.Sprintf("breach check: unexpected status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("breach check: %s: %v", e.Op, e.Err)
	default:
		return "breach check: " + e.Op
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Result is delivered by CheckAsync.
type Result struct {
	Breached bool
	Err      error
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the range endpoint. The prefix is appended as is, so
// the URL should end with a slash.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithPrefixLength sets how many digest characters are sent.
func WithPrefixLength(n int) Option {
	return func(c *Client) { c.prefixLen = n }
}

// WithLogger sets the logger. Only prefixes and status codes are logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client performs range queries. It keeps no per-check state, so concurrent
// checks are independent round trips; nothing is retried or de-duplicated.
type Client struct {
	http      *http.Client
	baseURL   string
	prefixLen int
	userAgent string
	log       *zap.Logger
}

// NewClient builds a Client on top of hc. A nil hc gets a client with
// DefaultTimeout.
func NewClient(hc *http.Client, opts ...Option) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	c := &Client{
		http:      hc,
		baseURL:   DefaultBaseURL,
		prefixLen: DefaultPrefixLength,
		userAgent: "keeperimport",
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PrefixLength returns the number of digest characters sent per query.
func (c *Client) PrefixLength() int { return c.prefixLen }

// Check reports whether password appears in the breach corpus. Failures are
// returned as *TransportError.
func (c *Client) Check(ctx context.Context, password string) (bool, error) {
	token := NewToken(password)
	prefix := token.Prefix(c.prefixLen)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+prefix, nil)
	if err != nil {
		return false, &TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Add-Padding", "true")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("breach range request failed", zap.String("prefix", prefix), zap.Error(err))
		return false, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.log.Warn("breach range unexpected status", zap.String("prefix", prefix), zap.Int("status", resp.StatusCode))
		return false, &TransportError{Op: "status", StatusCode: resp.StatusCode}
	}

	lines, err := readRange(resp.Body)
	if err != nil {
		return false, &TransportError{Op: "read", Err: err}
	}

	breached := token.Matches(c.prefixLen, lines)
	c.log.Debug("breach range checked", zap.String("prefix", prefix), zap.Int("candidates", len(lines)))
	return breached, nil
}

// readRange returns the candidate lines, skipping blanks and padding
// entries whose count is zero.
func readRange(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, count, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(count) == "0" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// CheckAsync runs Check on its own goroutine and delivers at most one Result.
// The request itself is not tied to ctx cancellation; once issued it runs to
// completion or to the http.Client timeout. If ctx is done by then, the
// result is dropped and the channel is closed empty.
func (c *Client) CheckAsync(ctx context.Context, password string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		breached, err := c.Check(context.WithoutCancel(ctx), password)
		if ctx.Err() != nil {
			c.log.Debug("breach result discarded", zap.Error(ctx.Err()))
			return
		}
		out <- Result{Breached: breached, Err: err}
	}()
	return out
}

// CheckFunc is the callback form of CheckAsync. Exactly one of onSuccess or
// onError runs, on a goroutine other than the caller's, unless ctx is done
// before the result arrives.
func (c *Client) CheckFunc(ctx context.Context, password string, onSuccess func(breached bool), onError func(err error)) {
	ch := c.CheckAsync(ctx, password)
	go func() {
		res, ok := <-ch
		if !ok {
			return
		}
		if res.Err != nil {
			onError(res.Err)
			return
		}
		onSuccess(res.Breached)
	}()
}
