package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const liteHTML = `<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href='https://go.dev/blog/go1.24'>Go 1.24 is released!</a></td></tr>
<tr><td class='result-snippet'>Today the Go team is happy to release Go 1.24 &amp; friends.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href='https://tip.golang.org/doc/go1.24'>Go 1.24 Release Notes</a></td></tr>
<tr><td class='result-snippet'>The latest Go release, version 1.24, arrives <b>six months</b> after Go 1.23.</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	t.Parallel()

	results := parseLiteResults(liteHTML, DefaultMaxResults)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	if results[0].Title != "Go 1.24 is released!" {
		t.Errorf("Unexpected title %q", results[0].Title)
	}
	if results[0].URL != "https://go.dev/blog/go1.24" {
		t.Errorf("Unexpected URL %q", results[0].URL)
	}
	if !strings.Contains(results[0].Snippet, "Go 1.24 & friends") {
		t.Errorf("Expected decoded entity in snippet, got %q", results[0].Snippet)
	}
	if strings.Contains(results[1].Snippet, "<b>") {
		t.Errorf("Expected tags stripped from snippet, got %q", results[1].Snippet)
	}
}

func TestParseLiteResultsHonorsLimit(t *testing.T) {
	t.Parallel()

	results := parseLiteResults(liteHTML, 1)
	if len(results) != 1 {
		t.Errorf("Expected 1 result with limit 1, got %d", len(results))
	}
}

func TestFallbackParse(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<a href="/internal">internal nav</a>
<a href="https://duckduckgo.com/about">About DDG</a>
<a href="https://example.com/page">A result title here</a>
<a href="https://example.com/page">A result title here</a>
<a href="javascript:void(0)">Click me now</a>
</body></html>`

	results := fallbackParse(html, DefaultMaxResults)
	if len(results) != 1 {
		t.Fatalf("Expected 1 deduplicated external result, got %d", len(results))
	}
	if results[0].URL != "https://example.com/page" {
		t.Errorf("Unexpected URL %q", results[0].URL)
	}
}

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	in := `  <b>Bold &amp; beautiful</b> &lt;tags&gt; &quot;quoted&quot; &#39;single&#39;&nbsp;end `
	got := cleanHTML(in)
	want := `Bold & beautiful <tags> "quoted" 'single' end`
	if got != want {
		t.Errorf("cleanHTML mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		if got := r.PostFormValue("q"); got != "current weather" {
			t.Errorf("Expected form query, got %q", got)
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("Expected browser user agent, got %q", ua)
		}
		_, _ = w.Write([]byte(liteHTML))
	}))
	defer server.Close()

	provider := NewDuckDuckGoWithClient(server.URL, server.Client())
	results, err := provider.Search(context.Background(), "current weather", Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Source != "duckduckgo" {
		t.Errorf("Expected source duckduckgo, got %q", results[0].Source)
	}
}

func TestDuckDuckGoEmptyQuery(t *testing.T) {
	t.Parallel()

	provider := NewDuckDuckGo()
	if _, err := provider.Search(context.Background(), "", Options{}); err == nil {
		t.Fatal("Expected error for empty query")
	}
}
