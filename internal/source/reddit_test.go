package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/persona/internal/cache"
	"github.com/ppiankov/persona/internal/model"
)

// fakeReddit serves n posts and n comments for "spez", paged by "after"
type fakeReddit struct {
	posts    int
	comments int
	requests atomic.Int32
}

func (f *fakeReddit) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)

		if ua := r.Header.Get("User-Agent"); ua != "persona-test/1.0" {
			t.Errorf("Expected test user agent, got %q", ua)
		}
		if r.URL.Query().Get("raw_json") != "1" {
			t.Error("Expected raw_json=1")
		}

		var total int
		var kind, prefix string
		switch r.URL.Path {
		case "/user/spez/submitted.json":
			total, kind, prefix = f.posts, "t3", "p"
		case "/user/spez/comments.json":
			total, kind, prefix = f.comments, "t1", "c"
		case "/user/banned/submitted.json", "/user/banned/comments.json":
			w.WriteHeader(http.StatusForbidden)
			return
		default:
			http.NotFound(w, r)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 100 {
			t.Errorf("Expected page limit in 1..100, got %d", limit)
		}
		start := 0
		if after := r.URL.Query().Get("after"); after != "" {
			start, _ = strconv.Atoi(strings.TrimPrefix(after, kind+"_"+prefix))
			start++
		}

		children := []map[string]any{}
		end := start + limit
		if end > total {
			end = total
		}
		for i := start; i < end; i++ {
			id := fmt.Sprintf("%s%d", prefix, i)
			data := map[string]any{
				"id":          id,
				"subreddit":   "golang",
				"created_utc": 1700000000.0 + float64(i),
				"permalink":   "/r/golang/comments/" + id,
				"author":      "spez",
				"score":       i,
			}
			if kind == "t3" {
				data["title"] = "Title " + id
				data["selftext"] = "Body " + id
			} else {
				data["body"] = "Comment " + id
				data["body_html"] = "<p>Comment " + id + "</p>"
			}
			children = append(children, map[string]any{"kind": kind, "data": data})
		}

		next := ""
		if end < total {
			next = fmt.Sprintf("%s_%s%d", kind, prefix, end-1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind": "Listing",
			"data": map[string]any{"after": next, "children": children},
		})
	}
}

func testConfig(baseURL string, limit int) model.SourceConfig {
	cfg := model.DefaultConfig().Source
	cfg.BaseURL = baseURL
	cfg.UserAgent = "persona-test/1.0"
	cfg.Limit = limit
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestSanitizeHandle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"spez", "spez"},
		{"  spez  ", "spez"},
		{"u/spez", "spez"},
		{"/u/spez/", "spez"},
		{"user/spez", "spez"},
		{"U/Spez", "Spez"},
		{"https://www.reddit.com/user/spez/", "spez"},
		{"reddit.com/u/spez", "spez"},
		{"", ""},
		{"/u/", ""},
	}
	for _, tt := range tests {
		if got := SanitizeHandle(tt.in); got != tt.want {
			t.Errorf("SanitizeHandle(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestValidateHandle(t *testing.T) {
	if h, err := ValidateHandle("u/some_user-1"); err != nil || h != "some_user-1" {
		t.Errorf("Expected valid handle, got %q %v", h, err)
	}
	for _, bad := range []string{"", "  ", "u/", "two words", "a/b/c", strings.Repeat("x", 40)} {
		if _, err := ValidateHandle(bad); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("Expected ErrInvalidHandle for %q, got %v", bad, err)
		}
	}
}

func TestFetchUser_Success(t *testing.T) {
	fake := &fakeReddit{posts: 3, comments: 2}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 100))
	activity, err := client.FetchUser(context.Background(), "/u/spez")
	if err != nil {
		t.Fatalf("FetchUser failed: %v", err)
	}

	if activity.Handle != "spez" {
		t.Errorf("Expected handle spez, got %s", activity.Handle)
	}
	if len(activity.Posts) != 3 || len(activity.Comments) != 2 {
		t.Fatalf("Expected 3 posts and 2 comments, got %d and %d", len(activity.Posts), len(activity.Comments))
	}

	post := activity.Posts[0]
	if post.ID != "p0" || post.Kind != model.KindPost || post.Title != "Title p0" || post.Body != "Body p0" {
		t.Errorf("Unexpected post mapping: %+v", post)
	}
	if post.Permalink != server.URL+"/r/golang/comments/p0" {
		t.Errorf("Expected absolute permalink, got %s", post.Permalink)
	}
	if post.Community != "golang" || post.CreatedUTC != 1700000000 {
		t.Errorf("Unexpected post metadata: %+v", post)
	}

	comment := activity.Comments[1]
	if comment.ID != "c1" || comment.Kind != model.KindComment || comment.Body != "Comment c1" || comment.BodyHTML == "" {
		t.Errorf("Unexpected comment mapping: %+v", comment)
	}
	if comment.Title != "" {
		t.Errorf("Comments should not carry a title, got %q", comment.Title)
	}

	items := activity.Items()
	if len(items) != 5 || items[0].Kind != model.KindPost || items[4].Kind != model.KindComment {
		t.Errorf("Expected posts then comments, got %d items", len(items))
	}
}

func TestFetchUser_Paginates(t *testing.T) {
	fake := &fakeReddit{posts: 250, comments: 10}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 230))
	activity, err := client.FetchUser(context.Background(), "spez")
	if err != nil {
		t.Fatalf("FetchUser failed: %v", err)
	}
	if len(activity.Posts) != 230 {
		t.Fatalf("Expected 230 posts, got %d", len(activity.Posts))
	}
	if activity.Posts[229].ID != "p229" {
		t.Errorf("Expected pages in order, last id %s", activity.Posts[229].ID)
	}
	if len(activity.Comments) != 10 {
		t.Errorf("Expected 10 comments, got %d", len(activity.Comments))
	}
	// 3 post pages + 1 comment page
	if n := fake.requests.Load(); n != 4 {
		t.Errorf("Expected 4 requests, got %d", n)
	}
}

func TestFetchUser_NoActivity(t *testing.T) {
	fake := &fakeReddit{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	activity, err := NewClient(testConfig(server.URL, 100)).FetchUser(context.Background(), "spez")
	if err != nil {
		t.Fatalf("FetchUser failed: %v", err)
	}
	if len(activity.Items()) != 0 {
		t.Errorf("Expected no items, got %d", len(activity.Items()))
	}
}

func TestFetchUser_StatusErrors(t *testing.T) {
	fake := &fakeReddit{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := NewClient(testConfig(server.URL, 100))

	_, err := client.FetchUser(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected StatusError 404, got %v", err)
	}

	_, err = client.FetchUser(context.Background(), "banned")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestFetchUser_InvalidHandleMakesNoRequest(t *testing.T) {
	fake := &fakeReddit{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL, 100)).FetchUser(context.Background(), "u/")
	if !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle, got %v", err)
	}
	if fake.requests.Load() != 0 {
		t.Errorf("Expected no requests, got %d", fake.requests.Load())
	}
}

func TestFetchUser_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL, 100)).FetchUser(context.Background(), "spez")
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestFetchUser_Cached(t *testing.T) {
	fake := &fakeReddit{posts: 2, comments: 2}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c := cache.NewMemoryCache(time.Minute)
	client := NewClient(testConfig(server.URL, 100), WithCache(c, time.Minute))

	first, err := client.FetchUser(context.Background(), "spez")
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	// The fake only knows lower-case spez, so this must come from cache
	second, err := client.FetchUser(context.Background(), "SPEZ")
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if len(second.Posts) != len(first.Posts) || second.Comments[0].ID != first.Comments[0].ID {
		t.Error("Expected cached listing to match the first fetch")
	}
	if n := fake.requests.Load(); n != 2 {
		t.Errorf("Expected 2 requests (one per listing), got %d", n)
	}
}

func TestFetchUser_RobotsDisallowed(t *testing.T) {
	fake := &fakeReddit{posts: 1}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /user/\n"))
	})
	mux.HandleFunc("/", fake.handler(t))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(server.URL, 100)
	cfg.RespectRobots = true

	_, err := NewClient(cfg).FetchUser(context.Background(), "spez")
	if !errors.Is(err, ErrRobotsDisallowed) {
		t.Errorf("Expected ErrRobotsDisallowed, got %v", err)
	}
	if fake.requests.Load() != 0 {
		t.Errorf("Expected no listing requests, got %d", fake.requests.Load())
	}
}

func TestFetchUser_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(testConfig(server.URL, 100)).FetchUser(ctx, "spez")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

type recordingPacer struct {
	mu     sync.Mutex
	waits  []string
	delays map[string]time.Duration
}

func (p *recordingPacer) WaitURL(ctx context.Context, rawURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, rawURL)
	return nil
}

func (p *recordingPacer) SetDelay(key string, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delays == nil {
		p.delays = map[string]time.Duration{}
	}
	p.delays[key] = delay
}

func TestFetchUser_PacerAndCrawlDelay(t *testing.T) {
	fake := &fakeReddit{posts: 1, comments: 1}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nCrawl-delay: 3\nAllow: /\n"))
	})
	mux.HandleFunc("/", fake.handler(t))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(server.URL, 100)
	cfg.RespectRobots = true
	pacer := &recordingPacer{}

	if _, err := NewClient(cfg, WithPacer(pacer)).FetchUser(context.Background(), "spez"); err != nil {
		t.Fatalf("FetchUser failed: %v", err)
	}

	if len(pacer.waits) != 2 {
		t.Errorf("Expected one wait per listing page, got %d", len(pacer.waits))
	}
	host := strings.TrimPrefix(server.URL, "http://")
	if pacer.delays[host] != 3*time.Second {
		t.Errorf("Expected crawl delay 3s for %s, got %v", host, pacer.delays)
	}
}
