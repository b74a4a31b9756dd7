// Package openawards ingests award notices from the OpenAwards API: a JSON
// GET endpoint with offset/limit pagination and a mandatory API key.
//
// OpenAwards is the source whose pagination is known to flap (records
// transiently drop out of listings and re-list a run or two later), which
// is why it defaults to zombie tracking in config.
package openawards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/custodia-labs/fundscan-cli/internal/connectors"
	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

const (
	// SourceName is the adapter's identifier.
	SourceName = "openawards"

	// DefaultPageSize is the limit requested per page.
	DefaultPageSize = 50

	// DefaultMaxPages is the hard pagination ceiling.
	DefaultMaxPages = 100

	// postedLayout is the date format used by the API.
	postedLayout = "2006-01-02"
)

// Options configures the adapter.
type Options struct {
	// BaseURL is the API root.
	BaseURL string

	// APIKeyEnv names the environment variable holding the API key.
	// When the variable is empty the adapter self-skips.
	APIKeyEnv string

	// PageSize is the limit per page; defaults to DefaultPageSize.
	PageSize int

	// MaxPages caps pagination; defaults to DefaultMaxPages.
	MaxPages int

	// Rate is the proactive throttle in requests/second.
	Rate float64

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// Adapter fetches award notices from OpenAwards.
type Adapter struct {
	opts   Options
	client *connectors.Client
}

// New creates an OpenAwards adapter.
func New(opts Options) *Adapter {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
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

// listResponse is the paginated response envelope.
type listResponse struct {
	Total   int `json:"total"`
	Results []struct {
		AwardID    string `json:"award_id"`
		Title      string `json:"title"`
		Funder     string `json:"funder"`
		Amount     string `json:"amount"`
		PostedDate string `json:"posted_date"`
	} `json:"results"`
}

// FetchAll walks the offset pagination to exhaustion or the page ceiling.
// A missing API key yields an empty result and a single log line, so an
// operator can leave this optional source unconfigured.
func (a *Adapter) FetchAll(ctx context.Context, query domain.ScanQuery, guard driven.CallGuard) ([]domain.RawItem, error) {
	apiKey := os.Getenv(a.opts.APIKeyEnv)
	if apiKey == "" {
		logger.Warn("%s: credential %s not set, skipping source", SourceName, a.opts.APIKeyEnv)
		return nil, nil
	}

	var items []domain.RawItem

	for page := 0; page < a.opts.MaxPages; page++ {
		var resp listResponse
		offset := page * a.opts.PageSize

		build := func(ctx context.Context) (*http.Request, error) {
			u, err := url.Parse(a.opts.BaseURL + "/api/v2/awards")
			if err != nil {
				return nil, err
			}
			q := u.Query()
			q.Set("q", query.Terms)
			q.Set("offset", fmt.Sprintf("%d", offset))
			q.Set("limit", fmt.Sprintf("%d", a.opts.PageSize))
			u.RawQuery = q.Encode()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-Api-Key", apiKey)
			return req, nil
		}
		decode := func(body []byte) error {
			resp = listResponse{}
			return json.Unmarshal(body, &resp)
		}

		if err := a.client.Do(ctx, guard, build, decode); err != nil {
			return items, err
		}

		for _, award := range resp.Results {
			item := domain.RawItem{
				Source:     SourceName,
				ExternalID: award.AwardID,
				Title:      award.Title,
				Payload: map[string]string{
					"funder": award.Funder,
					"amount": award.Amount,
				},
			}
			if ts, err := time.Parse(postedLayout, award.PostedDate); err == nil {
				item.PublishedAt = ts
			}
			if !query.Since.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(query.Since) {
				continue
			}
			items = append(items, item)
		}

		logger.Debug("%s: offset %d, %d results (total %d)", SourceName, offset, len(resp.Results), resp.Total)

		if len(resp.Results) < a.opts.PageSize || offset+a.opts.PageSize >= resp.Total {
			break
		}
	}

	return items, nil
}
