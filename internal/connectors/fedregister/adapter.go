// Package fedregister ingests funding notices from a Federal
// Register-style RSS feed. Single fetch, no pagination; gofeed handles the
// RSS/Atom envelope differences.
package fedregister

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/custodia-labs/fundscan-cli/internal/connectors"
	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// SourceName is the adapter's identifier.
const SourceName = "fedregister"

// Options configures the adapter.
type Options struct {
	// FeedURL is the search feed endpoint; the query term is appended as
	// the "q" parameter.
	FeedURL string

	// Rate is the proactive throttle in requests/second.
	Rate float64

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// Adapter fetches funding notices from an RSS feed.
type Adapter struct {
	opts   Options
	client *connectors.Client
	parser *gofeed.Parser
}

// New creates a feed adapter.
func New(opts Options) *Adapter {
	return &Adapter{
		opts:   opts,
		client: connectors.NewClient(SourceName, opts.Rate, opts.Timeout),
		parser: gofeed.NewParser(),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() string {
	return SourceName
}

// FetchAll fetches and normalises the feed. Feed entries without a GUID
// fall back to their link as the external identifier.
func (a *Adapter) FetchAll(ctx context.Context, query domain.ScanQuery, guard driven.CallGuard) ([]domain.RawItem, error) {
	var feed *gofeed.Feed

	build := func(ctx context.Context) (*http.Request, error) {
		u, err := url.Parse(a.opts.FeedURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		if query.Terms != "" {
			q.Set("q", query.Terms)
		}
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml")
		return req, nil
	}
	decode := func(body []byte) error {
		parsed, err := a.parser.Parse(bytes.NewReader(body))
		if err != nil {
			return err
		}
		feed = parsed
		return nil
	}

	if err := a.client.Do(ctx, guard, build, decode); err != nil {
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		externalID := entry.GUID
		if externalID == "" {
			externalID = entry.Link
		}
		if externalID == "" {
			continue
		}

		item := domain.RawItem{
			Source:     SourceName,
			ExternalID: externalID,
			Title:      entry.Title,
			Payload: map[string]string{
				"link": entry.Link,
			},
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = *entry.PublishedParsed
		}
		if !query.Since.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(query.Since) {
			continue
		}
		items = append(items, item)
	}

	logger.Debug("%s: %d feed entries, %d kept", SourceName, len(feed.Items), len(items))
	return items, nil
}
