// Package external fetches public web references for an error signature.
// Search never returns a Go error; failures are reported in Response.Error
// so the caller can continue without external evidence.
package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

const (
	DefaultBaseURL       = "https://html.duckduckgo.com/html/"
	DefaultMaxQueryChars = 350
	MaxResults           = 10
	Provider             = "duckduckgo_html"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Result is one external reference.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response is the outcome of a search. Error is empty on success.
type Response struct {
	Query    string   `json:"query"`
	Results  []Result `json:"results"`
	Provider string   `json:"provider"`
	Error    string   `json:"error,omitempty"`
}

// Client queries the DuckDuckGo HTML endpoint.
type Client struct {
	baseURL       string
	userAgent     string
	maxQueryChars int
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL and a
// zero timeout means 8 seconds.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:       baseURL,
		userAgent:     defaultUserAgent,
		maxQueryChars: DefaultMaxQueryChars,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// SanitizeQuery collapses whitespace and caps the query length.
func SanitizeQuery(q string, maxChars int) string {
	q = strings.TrimSpace(spaceRe.ReplaceAllString(q, " "))
	if r := []rune(q); maxChars > 3 && len(r) > maxChars {
		q = string(r[:maxChars-3]) + "..."
	}
	return q
}

// Search returns at most min(maxResults, 10) results for query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) Response {
	resp := Response{Provider: Provider, Results: []Result{}}
	q := SanitizeQuery(query, c.maxQueryChars)
	if q == "" {
		resp.Error = "empty_query"
		return resp
	}
	resp.Query = q

	doc, err := c.fetch(ctx, q)
	if err != nil {
		c.logger.Warn("external search failed", zap.String("query", q), zap.Error(err))
		resp.Error = err.Error()
		return resp
	}

	n := min(maxResults, MaxResults)
	if n <= 0 {
		return resp
	}
	links, snippets := collect(doc)
	for i := 0; i < len(links) && len(resp.Results) < n; i++ {
		r := links[i]
		if i < len(snippets) {
			r.Snippet = snippets[i]
		}
		if r.Title == "" && r.URL == "" {
			continue
		}
		resp.Results = append(resp.Results, r)
	}
	return resp
}

func (c *Client) fetch(ctx context.Context, q string) (*html.Node, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, rcaerr.New(rcaerr.KindNetwork, "external search", fmt.Errorf("parsing base url: %w", err))
	}
	params := u.Query()
	params.Set("q", q)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, rcaerr.New(rcaerr.KindNetwork, "external search", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, rcaerr.New(rcaerr.KindNetwork, "external search", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, rcaerr.Newf(rcaerr.KindNetwork, "external search", "status %d", res.StatusCode)
	}

	doc, err := html.Parse(res.Body)
	if err != nil {
		return nil, rcaerr.New(rcaerr.KindNetwork, "external search", fmt.Errorf("parsing html: %w", err))
	}
	return doc, nil
}

// collect walks the result page and returns result links and snippets in
// document order.
func collect(doc *html.Node) (links []Result, snippets []string) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				href := attr(n, "href")
				if href != "" {
					links = append(links, Result{Title: text(n), URL: resolveHref(href)})
				}
				return
			case hasClass(n, "result__snippet"):
				snippets = append(snippets, text(n))
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links, snippets
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(spaceRe.ReplaceAllString(b.String(), " "))
}

// resolveHref unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func resolveHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
