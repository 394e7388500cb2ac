package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// Parser fetches and normalizes RSS/Atom feeds. It has no retry logic of its
// own; a failed fetch is retried only when the feed next comes due.
type Parser struct {
	gofeedParser *gofeed.Parser
	httpClient   *http.Client
	userAgent    string
	timeout      time.Duration
}

func NewParser(httpClient *http.Client, userAgent string, timeout time.Duration) *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		httpClient:   httpClient,
		userAgent:    userAgent,
		timeout:      timeout,
	}
}

// Fetch downloads and parses the feed at url. The returned items carry the
// source order.
func (p *Parser) Fetch(ctx context.Context, url string) (*Metadata, []Item, error) {
	data, err := p.download(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return p.Parse(data, time.Now().UTC())
}

// Parse normalizes raw feed data. Items without a published or updated date
// are stamped with now; this can misorder historical republishes but keeps
// dateless items deliverable.
func (p *Parser) Parse(data []byte, now time.Time) (*Metadata, []Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		items = append(items, p.normalizeItem(item, now))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, now time.Time) Item {
	normalized := Item{
		GUID:    cmp.Or(item.GUID, item.Link),
		Title:   item.Title,
		Link:    item.Link,
		Summary: cmp.Or(item.Description, item.Content),
	}

	switch {
	case item.PublishedParsed != nil:
		normalized.PublishedAt = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		normalized.PublishedAt = *item.UpdatedParsed
	default:
		normalized.PublishedAt = now
	}

	return normalized
}

func (p *Parser) download(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
