package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/persona/internal/cache"
	"github.com/ppiankov/persona/internal/logger"
	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/util"
)

// Reddit listing page size cap
const maxPageSize = 100

var (
	// ErrInvalidHandle is returned for empty or malformed user handles
	ErrInvalidHandle = errors.New("invalid user handle")

	// ErrNotFound means the user does not exist
	ErrNotFound = errors.New("user not found")

	// ErrForbidden means the profile is suspended, private or otherwise denied
	ErrForbidden = errors.New("access denied")

	// ErrRobotsDisallowed means robots.txt forbids fetching the listing
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
)

var (
	handlePrefix  = regexp.MustCompile(`(?i)^/?u(ser)?/`)
	handlePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

// StatusError reports an unexpected HTTP status from the listing API
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Unwrap maps 404 to ErrNotFound and 401/403 to ErrForbidden
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrForbidden
	}
	return nil
}

// SanitizeHandle strips a leading "u/", "/u/" or "user/" marker, a reddit
// profile URL and surrounding slashes or whitespace
func SanitizeHandle(raw string) string {
	h := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://", "http://", "www.", "old.", "reddit.com"} {
		if len(h) >= len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			h = h[len(prefix):]
		}
	}
	h = handlePrefix.ReplaceAllString(h, "")
	return strings.Trim(h, "/ ")
}

// ValidateHandle sanitizes raw and checks it is a plausible username
func ValidateHandle(raw string) (string, error) {
	h := SanitizeHandle(raw)
	if h == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidHandle)
	}
	if !handlePattern.MatchString(h) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, h)
	}
	return h, nil
}

// Activity is what a user has posted, newest first
type Activity struct {
	Handle   string
	Posts    []model.RawItem
	Comments []model.RawItem
}

// Items returns posts followed by comments
func (a *Activity) Items() []model.RawItem {
	items := make([]model.RawItem, 0, len(a.Posts)+len(a.Comments))
	items = append(items, a.Posts...)
	return append(items, a.Comments...)
}

// Fetcher provides a user's recent activity
type Fetcher interface {
	FetchUser(ctx context.Context, handle string) (*Activity, error)
}

// Client reads public user listings from Reddit's JSON API
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limit      int
	maxBytes   int64
	robots     *util.RobotsChecker
	pacer      Pacer
	delayOnce  sync.Once
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *zap.SugaredLogger
}

// Pacer spaces out requests per host
type Pacer interface {
	WaitURL(ctx context.Context, rawURL string) error
	SetDelay(key string, delay time.Duration)
}

// Option configures a Client
type Option func(*Client)

// WithPacer paces every listing request through p. With robots.txt enabled,
// its Crawl-delay replaces the pacer's rate for the host.
func WithPacer(p Pacer) Option {
	return func(cl *Client) {
		cl.pacer = p
	}
}

// WithCache caches listings in c for ttl
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithLogger sets the client logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(cl *Client) {
		cl.logger = logger.OrNop(l)
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = hc
	}
}

// NewClient creates a listing client from the source configuration
func NewClient(cfg model.SourceConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = maxPageSize
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}

	c := &Client{
		httpClient: util.NewHTTPClient(timeout, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		limit:      limit,
		maxBytes:   maxBytes,
		logger:     zap.NewNop().Sugar(),
	}
	c.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}
	if cfg.RespectRobots {
		c.robots = util.NewRobotsChecker(cfg.UserAgent, timeout)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUser fetches up to limit recent posts and limit recent comments.
// Both listings are fetched concurrently; either failing fails the call.
func (c *Client) FetchUser(ctx context.Context, handle string) (*Activity, error) {
	handle, err := ValidateHandle(handle)
	if err != nil {
		return nil, err
	}

	activity := &Activity{Handle: handle}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts, err := c.fetchListing(gctx, handle, "submitted", model.KindPost)
		activity.Posts = posts
		return err
	})
	g.Go(func() error {
		comments, err := c.fetchListing(gctx, handle, "comments", model.KindComment)
		activity.Comments = comments
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debugw("Fetched user activity", "handle", handle, "posts", len(activity.Posts), "comments", len(activity.Comments))
	return activity, nil
}

// fetchListing pages through /user/<handle>/<section>.json until limit items
func (c *Client) fetchListing(ctx context.Context, handle, section string, kind model.Kind) ([]model.RawItem, error) {
	key := cache.CacheKey("listing", strings.ToLower(handle), section, strconv.Itoa(c.limit))
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			var items []model.RawItem
			if err := json.Unmarshal(data, &items); err == nil {
				c.logger.Debugw("Listing cache hit", "handle", handle, "section", section)
				return items, nil
			}
		}
	}

	items := make([]model.RawItem, 0, c.limit)
	after := ""
	for len(items) < c.limit {
		pageSize := c.limit - len(items)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		page, next, err := c.fetchPage(ctx, handle, section, kind, pageSize, after)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if next == "" || len(page) == 0 {
			break
		}
		after = next
	}
	if len(items) > c.limit {
		items = items[:c.limit]
	}

	if c.cache != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := c.cache.Set(key, data, c.cacheTTL); err != nil {
				c.logger.Warnw("Failed to cache listing", "handle", handle, "section", section, "error", err)
			}
		}
	}
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, handle, section string, kind model.Kind, size int, after string) ([]model.RawItem, string, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(size))
	q.Set("raw_json", "1")
	q.Set("sort", "new")
	if after != "" {
		q.Set("after", after)
	}
	pageURL := fmt.Sprintf("%s/user/%s/%s.json?%s", c.baseURL, url.PathEscape(handle), section, q.Encode())

	if c.robots != nil {
		allowed, err := c.robots.Allowed(ctx, pageURL)
		if err == nil && !allowed {
			return nil, "", fmt.Errorf("%w: %s", ErrRobotsDisallowed, pageURL)
		}
	}

	if c.pacer != nil {
		if c.robots != nil {
			c.delayOnce.Do(func() {
				if u, err := url.Parse(pageURL); err == nil {
					if delay := c.robots.CrawlDelay(u.Host); delay > 0 {
						c.logger.Debugw("Honoring crawl delay", "host", u.Host, "delay", delay)
						c.pacer.SetDelay(u.Host, delay)
					}
				}
			})
		}
		if err := c.pacer.WaitURL(ctx, pageURL); err != nil {
			return nil, "", fmt.Errorf("wait for rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", section, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, "", fmt.Errorf("decode %s listing: %w", section, err)
	}

	items := make([]model.RawItem, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		items = append(items, child.Data.rawItem(kind, c.baseURL))
	}
	return items, l.Data.After, nil
}

// Reddit listing wire format
type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string    `json:"kind"`
			Data thingData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type thingData struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Selftext          string  `json:"selftext"`
	SelftextHTML      string  `json:"selftext_html"`
	Body              string  `json:"body"`
	BodyHTML          string  `json:"body_html"`
	Subreddit         string  `json:"subreddit"`
	CreatedUTC        float64 `json:"created_utc"`
	Permalink         string  `json:"permalink"`
	Author            string  `json:"author"`
	RemovedByCategory string  `json:"removed_by_category"`
	Score             int     `json:"score"`
}

func (d thingData) rawItem(kind model.Kind, baseURL string) model.RawItem {
	item := model.RawItem{
		ID:                d.ID,
		Kind:              kind,
		Community:         d.Subreddit,
		CreatedUTC:        d.CreatedUTC,
		Author:            d.Author,
		RemovedByCategory: d.RemovedByCategory,
		Score:             d.Score,
	}
	if d.Permalink != "" {
		item.Permalink = baseURL + d.Permalink
	}
	if kind == model.KindPost {
		item.Title = d.Title
		item.Body = d.Selftext
		item.BodyHTML = d.SelftextHTML
	} else {
		item.Body = d.Body
		item.BodyHTML = d.BodyHTML
	}
	return item
}
