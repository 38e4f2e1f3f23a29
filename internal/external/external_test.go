package external

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

const resultsPage = `<html><body>
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fhdmi&amp;rut=x">HDMI <b>flicker</b> fix</a>
  <a class="result__snippet" href="#">Update the &amp; dock firmware.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/two">Second result</a>
  <a class="result__snippet" href="#">Snippet two</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/three">Third</a>
</div>
</body></html>`

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchParsesResults(t *testing.T) {
	var gotQuery, gotUA string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, resultsPage)
	})

	c := NewClient(srv.URL+"/html/", time.Second, nil)
	resp := c.Search(context.Background(), "  HDMI\n flicker   dock ", 5)

	if resp.Error != "" {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	if gotQuery != "HDMI flicker dock" || resp.Query != "HDMI flicker dock" {
		t.Errorf("query = %q (sent %q)", resp.Query, gotQuery)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("user agent = %q", gotUA)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %+v", resp.Results)
	}
	first := resp.Results[0]
	if first.Title != "HDMI flicker fix" {
		t.Errorf("title = %q", first.Title)
	}
	if first.URL != "https://example.com/hdmi" {
		t.Errorf("url = %q", first.URL)
	}
	if first.Snippet != "Update the & dock firmware." {
		t.Errorf("snippet = %q", first.Snippet)
	}
	if resp.Results[2].Snippet != "" {
		t.Errorf("expected empty snippet, got %q", resp.Results[2].Snippet)
	}
	if resp.Provider != Provider {
		t.Errorf("provider = %q", resp.Provider)
	}
}

func TestSearchCapsResults(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		for i := 0; i < 15; i++ {
			fmt.Fprintf(&b, `<a class="result__a" href="https://example.com/%d">r%d</a>`, i, i)
		}
		fmt.Fprint(w, b.String())
	})
	c := NewClient(srv.URL, time.Second, nil)

	if got := len(c.Search(context.Background(), "q", 2).Results); got != 2 {
		t.Errorf("max 2: got %d", got)
	}
	if got := len(c.Search(context.Background(), "q", 50).Results); got != MaxResults {
		t.Errorf("max 50: got %d, want %d", got, MaxResults)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", time.Second, nil)
	resp := c.Search(context.Background(), " \n\t ", 5)
	if resp.Error != "empty_query" {
		t.Errorf("error = %q, want empty_query", resp.Error)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", resp.Results)
	}
}

func TestSearchHTTPErrorIsData(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	resp := NewClient(srv.URL, time.Second, nil).Search(context.Background(), "boom", 5)
	if !strings.Contains(resp.Error, "network") || !strings.Contains(resp.Error, "403") {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected no results, got %v", resp.Results)
	}
}

func TestSearchTimeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	resp := NewClient(srv.URL, 50*time.Millisecond, nil).Search(context.Background(), "slow", 5)
	if resp.Error == "" {
		t.Error("expected timeout to be reported")
	}
}

func TestSanitizeQuery(t *testing.T) {
	long := strings.Repeat("a", 400)
	got := SanitizeQuery(long, DefaultMaxQueryChars)
	if utf8.RuneCountInString(got) != DefaultMaxQueryChars || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected sanitized length %d", utf8.RuneCountInString(got))
	}
	if got := SanitizeQuery("a\r\nb\t c", 350); got != "a b c" {
		t.Errorf("SanitizeQuery = %q", got)
	}
}

func TestResolveHref(t *testing.T) {
	tests := map[string]string{
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.example%2Fx": "https://a.example/x",
		"https://b.example/y":                                  "https://b.example/y",
		"//c.example/z":                                        "https://c.example/z",
	}
	for in, want := range tests {
		if got := resolveHref(in); got != want {
			t.Errorf("resolveHref(%q) = %q, want %q", in, got, want)
		}
	}
}
