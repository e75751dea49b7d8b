package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"trailing space trimmed", "hello  world", 9, "hello..."},
		{"tiny max", "hello", 2, "he"},
		{"disabled", "hello", 0, "hello"},
		{"runes", "héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  a \n\t b  c "); got != "a b c" {
		t.Errorf("Expected 'a b c', got %q", got)
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	if got := NormalizeUserAgent("Persona/0.1 (+https://example.com)"); got != "Persona" {
		t.Errorf("Expected Persona, got %q", got)
	}
	if got := NormalizeUserAgent(""); got != "" {
		t.Errorf("Expected empty, got %q", got)
	}
}

func TestRobotsChecker(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		fetches.Add(1)
		_, _ = w.Write([]byte("User-agent: Persona\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer server.Close()

	r := NewRobotsChecker("Persona/0.1", 5*time.Second)
	ctx := context.Background()

	allowed, err := r.Allowed(ctx, server.URL+"/user/spez/comments.json?limit=100")
	if err != nil {
		t.Fatalf("Allowed failed: %v", err)
	}
	if !allowed {
		t.Error("Expected user listing to be allowed for Persona")
	}

	allowed, _ = r.Allowed(ctx, server.URL+"/private/thing")
	if allowed {
		t.Error("Expected /private to be disallowed")
	}

	if fetches.Load() != 1 {
		t.Errorf("Expected robots.txt fetched once, got %d", fetches.Load())
	}

	host := server.Listener.Addr().String()
	if d := r.CrawlDelay(host); d != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", d)
	}

	r.Clear()
	_, _ = r.Allowed(ctx, server.URL+"/x")
	if fetches.Load() != 2 {
		t.Errorf("Expected refetch after Clear, got %d fetches", fetches.Load())
	}
}

func TestRobotsChecker_MissingFileAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	r := NewRobotsChecker("Persona/0.1", 5*time.Second)
	allowed, err := r.Allowed(context.Background(), server.URL+"/anything")
	if err != nil || !allowed {
		t.Errorf("Expected allow on 404 robots.txt, got %v %v", allowed, err)
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	r := NewRobotsChecker("Persona/0.1", time.Second)
	allowed, err := r.Allowed(context.Background(), url+"/anything")
	if !allowed {
		t.Error("Expected allow when robots.txt is unreachable")
	}
	if err == nil {
		t.Error("Expected the fetch error to be reported")
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "", "localhost,.corp")

	req, _ := http.NewRequest(http.MethodGet, "https://www.reddit.com/user/spez.json", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("Proxy func failed: %v", err)
	}
	if u == nil || u.Host != "proxy.internal:3128" {
		t.Errorf("Expected HTTPS to fall back to the HTTP proxy, got %v", u)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://api.corp/x", nil)
	if u, _ := proxy(req); u != nil {
		t.Errorf("Expected no proxy for excluded host, got %v", u)
	}
}
