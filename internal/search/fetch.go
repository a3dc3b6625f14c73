// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/research-weaver/internal/httputil"
	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// ErrUnsupportedContent is returned for responses that are neither HTML nor
// plain text (PDFs, images, archives).
var ErrUnsupportedContent = errors.New("unsupported content type")

const defaultMaxBodyBytes = 2 << 20

// HTTPFetcher fetches pages over HTTP and reduces HTML to readable text.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	// MaxBodyBytes caps the bytes read from a response (default 2 MiB).
	MaxBodyBytes int64
}

// FetchPage retrieves rawURL. A non-200 status is returned in the Page
// together with an error so callers can fall back to a snippet.
func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string) (types.Page, error) {
	page := types.Page{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.1")

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 1)
	if err != nil {
		return page, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	page.StatusCode = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		return page, fmt.Errorf("fetching %s: HTTP %d", rawURL, resp.StatusCode)
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return page, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || (mediaType == "" && looksLikeHTML(body)):
		page.Title, page.Content = extractHTML(string(body))
	case strings.HasPrefix(mediaType, "text/"):
		page.Content = textproc.Clean(string(body))
	default:
		return page, fmt.Errorf("fetching %s: %w %q", rawURL, ErrUnsupportedContent, mediaType)
	}
	return page, nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// skippedElements never contribute text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"header": true, "footer": true, "aside": true, "form": true,
	"svg": true, "iframe": true, "template": true,
}

// blockElements end a paragraph.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"br": true, "tr": true, "blockquote": true, "pre": true,
}

// extractHTML returns the document title and the visible text, with
// paragraphs separated by blank lines.
func extractHTML(doc string) (string, string) {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		title   strings.Builder
		content strings.Builder
		para    strings.Builder
		skip    int
		inTitle bool
	)
	flush := func() {
		if p := textproc.Clean(para.String()); p != "" {
			if content.Len() > 0 {
				content.WriteString("\n\n")
			}
			content.WriteString(p)
		}
		para.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return textproc.Clean(title.String()), content.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = tt == html.StartTagToken
			case skippedElements[tag] && tt == html.StartTagToken:
				skip++
			case blockElements[tag]:
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "title":
				inTitle = false
			case skippedElements[tag]:
				if skip > 0 {
					skip--
				}
			case blockElements[tag]:
				flush()
			}
		case html.TextToken:
			text := string(z.Text())
			switch {
			case inTitle:
				title.WriteString(text)
			case skip == 0:
				para.WriteString(text)
				para.WriteByte(' ')
			}
		}
	}
}
