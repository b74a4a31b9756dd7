// Package civicboard ingests opportunity listings from a civic grants
// board that publishes HTML only. Pages are walked with a "page" query
// parameter until one comes back without listing rows; rows are extracted
// with CSS selectors via goquery.
package civicboard

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/fundscan-cli/internal/connectors"
	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

const (
	// SourceName is the adapter's identifier.
	SourceName = "civicboard"

	// DefaultMaxPages is the hard pagination ceiling.
	DefaultMaxPages = 25

	// postedLayout is the date format used in listing rows.
	postedLayout = "2006-01-02"

	// rowSelector matches one listing row.
	rowSelector = "div.opportunity-row"
)

// Options configures the adapter.
type Options struct {
	// BaseURL is the board root; listings live under /opportunities.
	BaseURL string

	// MaxPages caps pagination; defaults to DefaultMaxPages.
	MaxPages int

	// Rate is the proactive throttle in requests/second.
	Rate float64

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// Adapter scrapes opportunity listings from the board's HTML pages.
type Adapter struct {
	opts   Options
	client *connectors.Client
}

// New creates a civic board adapter.
func New(opts Options) *Adapter {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &Adapter{
		opts:   opts,
		client: connectors.NewClient(SourceName, opts.Rate, opts.Timeout),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() string {
	return SourceName
}

// FetchAll walks listing pages until an empty page or the ceiling.
func (a *Adapter) FetchAll(ctx context.Context, query domain.ScanQuery, guard driven.CallGuard) ([]domain.RawItem, error) {
	var items []domain.RawItem

	for page := 1; page <= a.opts.MaxPages; page++ {
		var pageItems []domain.RawItem

		build := func(ctx context.Context) (*http.Request, error) {
			u, err := url.Parse(a.opts.BaseURL + "/opportunities")
			if err != nil {
				return nil, err
			}
			q := u.Query()
			q.Set("page", fmt.Sprintf("%d", page))
			if query.Terms != "" {
				q.Set("q", query.Terms)
			}
			u.RawQuery = q.Encode()
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}
		decode := func(body []byte) error {
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				return err
			}
			pageItems = extractRows(doc)
			return nil
		}

		if err := a.client.Do(ctx, guard, build, decode); err != nil {
			return items, err
		}

		logger.Debug("%s: page %d, %d rows", SourceName, page, len(pageItems))
		if len(pageItems) == 0 {
			break
		}

		for _, item := range pageItems {
			if !query.Since.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(query.Since) {
				continue
			}
			items = append(items, item)
		}
	}

	return items, nil
}

// extractRows pulls listing rows out of one page.
func extractRows(doc *goquery.Document) []domain.RawItem {
	var rows []domain.RawItem

	doc.Find(rowSelector).Each(func(_ int, sel *goquery.Selection) {
		id, ok := sel.Attr("data-id")
		if !ok || id == "" {
			return
		}

		item := domain.RawItem{
			Source:     SourceName,
			ExternalID: id,
			Title:      strings.TrimSpace(sel.Find(".title a").First().Text()),
			Payload:    map[string]string{},
		}
		if href, ok := sel.Find(".title a").First().Attr("href"); ok {
			item.Payload["link"] = href
		}
		if funder := strings.TrimSpace(sel.Find(".funder").First().Text()); funder != "" {
			item.Payload["funder"] = funder
		}
		if posted := strings.TrimSpace(sel.Find(".posted-date").First().Text()); posted != "" {
			if ts, err := time.Parse(postedLayout, posted); err == nil {
				item.PublishedAt = ts
			}
		}
		rows = append(rows, item)
	})

	return rows
}
