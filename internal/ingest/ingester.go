package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rulegen/internal/logging"
)

// ErrEmptyContent is returned when a source yields no usable text.
var ErrEmptyContent = errors.New("source contains no text content")

// Link is an outbound reference discovered on a page.
type Link struct {
	URL   string
	Title string
}

// Document is the normalized output of the ingester: plain text plus the
// outbound links found on the page (empty for local files).
type Document struct {
	Source string
	Title  string
	Text   string
	Links  []Link
}

type Ingester struct {
	client    *http.Client
	log       logging.Logger
	userAgent string
	maxPages  int
}

func NewIngester(timeout time.Duration, maxPages int, log logging.Logger) *Ingester {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxPages <= 0 {
		maxPages = 12
	}
	return &Ingester{
		client:    &http.Client{Timeout: timeout},
		log:       log,
		userAgent: "rulegen/1.0",
		maxPages:  maxPages,
	}
}

// Fetch reads a single source, either an http(s) URL or a local file path,
// and normalizes it to plain text.
func (in *Ingester) Fetch(ctx context.Context, source string) (*Document, error) {
	if isURL(source) {
		return in.fetchURL(ctx, source)
	}
	return in.readFile(source)
}

// FollowLinks performs a breadth-first walk over same-host links starting
// from root, up to depth hops. The returned slice starts with root and
// preserves discovery order so downstream processing stays deterministic.
// Individual page failures are logged and skipped.
func (in *Ingester) FollowLinks(ctx context.Context, root *Document, depth int) []*Document {
	docs := []*Document{root}
	if depth <= 0 || !isURL(root.Source) {
		return docs
	}

	base, err := url.Parse(root.Source)
	if err != nil {
		return docs
	}

	visited := map[string]bool{normalizeURL(root.Source): true}
	frontier := root.Links

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []Link
		for _, link := range frontier {
			if len(docs) >= in.maxPages {
				return docs
			}
			key := normalizeURL(link.URL)
			if visited[key] {
				continue
			}
			visited[key] = true

			target, err := url.Parse(link.URL)
			if err != nil || target.Host != base.Host {
				continue
			}

			doc, err := in.fetchURL(ctx, link.URL)
			if err != nil {
				in.log.Warn("skipping linked page %s: %v", link.URL, err)
				continue
			}
			docs = append(docs, doc)
			next = append(next, doc.Links...)
		}
		frontier = next
	}
	return docs
}

func (in *Ingester) fetchURL(ctx context.Context, rawURL string) (*Document, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", in.userAgent)

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	text := extractText(doc)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	return &Document{
		Source: parsed.String(),
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Text:   text,
		Links:  collectLinks(doc, parsed, 50),
	}, nil
}

func (in *Ingester) readFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, ErrEmptyContent
	}
	return &Document{
		Source: path,
		Title:  filepath.Base(path),
		Text:   text,
	}, nil
}

// extractText walks block-level elements so paragraph boundaries survive
// into the chunker. Code blocks keep their original spacing.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, noscript").Remove()

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td, blockquote").Each(func(i int, s *goquery.Selection) {
		// Skip containers whose text is already covered by a nested block.
		if s.Is("td") && s.Find("p, li, pre").Length() > 0 {
			return
		}
		var text string
		if s.Is("pre") {
			text = strings.TrimRight(s.Text(), "\n")
		} else {
			text = strings.Join(strings.Fields(s.Text()), " ")
		}
		if strings.TrimSpace(text) != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		// Pages without semantic markup fall back to the raw body text.
		return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	return strings.Join(blocks, "\n\n")
}

func collectLinks(doc *goquery.Document, base *url.URL, limit int) []Link {
	var links []Link
	seen := map[string]bool{}
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			return true
		}
		resolved, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(resolved)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		key := normalizeURL(abs.String())
		if seen[key] {
			return true
		}
		seen[key] = true
		links = append(links, Link{
			URL:   abs.String(),
			Title: strings.Join(strings.Fields(s.Text()), " "),
		})
		return len(links) < limit
	})
	return links
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
