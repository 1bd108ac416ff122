// Package osonish fetches vacancies from the OsonIsh public API.
package osonish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/jobimport/internal/cache"
	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/source"
)

// SourceName is the value stored in jobs.source for OsonIsh rows.
const SourceName = "osonish"

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultTimeout    = 20 * time.Second
	DefaultRateLimit  = 5.0
	DefaultPageSize   = 50
)

// Config holds OsonIsh client settings.
type Config struct {
	// BaseURLs are tried in order; the first non-404 answer wins.
	BaseURLs          []string
	ListPath          string // fmt pattern with page and page size
	DetailPath        string // fmt pattern with the source id
	PageSize          int
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
	UserAgent         string
}

// DefaultConfig returns the production endpoints.
func DefaultConfig() Config {
	return Config{
		BaseURLs:          []string{"https://osonish.uz/api/v1", "https://osonish.uz/api"},
		ListPath:          "/vacancies?page=%d&per_page=%d",
		DetailPath:        "/vacancies/%s",
		PageSize:          DefaultPageSize,
		MaxRetries:        DefaultMaxRetries,
		RetryDelay:        DefaultRetryDelay,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: DefaultRateLimit,
		UserAgent:         "jobimport/1.0",
	}
}

// Option configures the Client.
type Option func(*Client)

// WithCache serves detail responses from c for Config.CacheTTL.
func WithCache(c cache.Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(cl *Client) {
		cl.sleep = sleep
	}
}

// Client implements source.Source for OsonIsh.
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
	cache   cache.Cache
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates an OsonIsh client. Zero config values fall back to
// DefaultConfig. A negative MaxRetries disables retries and a negative
// RequestsPerSecond disables rate limiting.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if len(cfg.BaseURLs) == 0 {
		cfg.BaseURLs = def.BaseURLs
	}
	if cfg.ListPath == "" {
		cfg.ListPath = def.ListPath
	}
	if cfg.DetailPath == "" {
		cfg.DetailPath = def.DetailPath
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = def.MaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", cfg.UserAgent)

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		http:    client,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache.Noop{},
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements source.Source.
func (c *Client) Name() string {
	return SourceName
}

// FetchList implements source.Source.
func (c *Client) FetchList(ctx context.Context, page int) (*source.ListPage, error) {
	if page < 1 {
		page = 1
	}
	body, err := c.get(ctx, fmt.Sprintf(c.cfg.ListPath, page, c.cfg.PageSize))
	if err != nil {
		return nil, fmt.Errorf("fetch list page %d: %w", page, err)
	}
	lp, err := parseList(body, page, c.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("parse list page %d: %w", page, err)
	}
	return lp, nil
}

// FetchDetail implements source.Source. A record missing at every
// candidate endpoint yields nil, nil.
func (c *Client) FetchDetail(ctx context.Context, sourceID string) (*source.Vacancy, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil, fmt.Errorf("fetch detail: empty source id")
	}
	key := SourceName + ":detail:" + sourceID

	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		logger.CtxWarn(ctx, "Detail cache read failed for %s: %v", sourceID, err)
	} else if ok {
		if v, err := parseDetail(cached); err == nil {
			return v, nil
		}
	}

	body, err := c.get(ctx, fmt.Sprintf(c.cfg.DetailPath, sourceID))
	if errors.Is(err, source.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch detail %s: %w", sourceID, err)
	}

	v, err := parseDetail(body)
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", sourceID, err)
	}
	if err := c.cache.Set(ctx, key, body, c.cfg.CacheTTL); err != nil {
		logger.CtxWarn(ctx, "Detail cache write failed for %s: %v", sourceID, err)
	}
	return v, nil
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeNotFound
	outcomeHTTPError
	outcomeUnreachable
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeNotFound:
		return "not_found"
	case outcomeHTTPError:
		return "http_error"
	default:
		return "unreachable"
	}
}

// attempt is the result of asking one candidate endpoint.
type attempt struct {
	url     string
	outcome outcome
	body    []byte
	err     error
}

// get asks each candidate in order. A 2xx body or a non-404 HTTP error is
// final; 404 and transport failures move on to the next candidate.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for _, base := range c.cfg.BaseURLs {
		res := c.try(ctx, strings.TrimRight(base, "/")+path)
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldURL:    res.url,
			logger.FieldStatus: res.outcome.String(),
		}).Debug("Candidate endpoint answered")

		switch res.outcome {
		case outcomeSuccess:
			return res.body, nil
		case outcomeNotFound:
			continue
		case outcomeHTTPError:
			return nil, res.err
		case outcomeUnreachable:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = res.err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, source.ErrNotFound
}

// try performs one GET with linear backoff on 429 and 5xx.
func (c *Client) try(ctx context.Context, url string) attempt {
	for n := 0; ; n++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return attempt{url: url, outcome: outcomeUnreachable, err: err}
		}

		resp, err := c.http.R().SetContext(ctx).Get(url)
		if err != nil {
			return attempt{url: url, outcome: outcomeUnreachable, err: fmt.Errorf("request %s: %w", url, err)}
		}

		status := resp.StatusCode()
		switch {
		case status >= 200 && status < 300:
			return attempt{url: url, outcome: outcomeSuccess, body: resp.Body()}
		case status == http.StatusNotFound:
			return attempt{url: url, outcome: outcomeNotFound}
		case retryable(status) && n < c.cfg.MaxRetries:
			delay := time.Duration(n+1) * c.cfg.RetryDelay
			logger.FromContext(ctx).WithFields(logger.Fields{
				logger.FieldURL:     url,
				logger.FieldStatus:  status,
				logger.FieldAttempt: n + 1,
			}).Warnf("Retrying in %s", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return attempt{url: url, outcome: outcomeUnreachable, err: err}
			}
		default:
			return attempt{url: url, outcome: outcomeHTTPError, err: source.NewHTTPError(status, resp.Body(), url)}
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
