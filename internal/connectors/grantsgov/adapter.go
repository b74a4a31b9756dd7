// Package grantsgov ingests open grant opportunities from the grants.gov
// search API: a JSON POST endpoint paginated by start record number.
package grantsgov

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
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
	SourceName = "grantsgov"

	// DefaultPageSize is the rows requested per page.
	DefaultPageSize = 100

	// DefaultMaxPages is the hard pagination ceiling.
	DefaultMaxPages = 50

	// openDateLayout is the date format used by the search API.
	openDateLayout = "01/02/2006"
)

// Options configures the adapter.
type Options struct {
	// BaseURL is the API root, e.g. "https://api.grants.gov".
	BaseURL string

	// PageSize is the rows per page; defaults to DefaultPageSize.
	PageSize int

	// MaxPages caps pagination; defaults to DefaultMaxPages.
	MaxPages int

	// Rate is the proactive throttle in requests/second.
	Rate float64

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// Adapter fetches grant opportunities from grants.gov.
type Adapter struct {
	opts   Options
	client *connectors.Client
}

// New creates a grants.gov adapter.
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

// searchRequest is the POST body for the search endpoint.
type searchRequest struct {
	Keyword        string `json:"keyword"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
	OppStatuses    string `json:"oppStatuses"`
}

// searchResponse is the response envelope.
type searchResponse struct {
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
	Data      struct {
		HitCount int `json:"hitCount"`
		OppHits  []struct {
			ID         string   `json:"id"`
			Number     string   `json:"number"`
			Title      string   `json:"title"`
			AgencyCode string   `json:"agencyCode"`
			OpenDate   string   `json:"openDate"`
			CFDAList   []string `json:"cfdaList"`
		} `json:"oppHits"`
	} `json:"data"`
}

// FetchAll paginates the search to exhaustion or the page ceiling.
func (a *Adapter) FetchAll(ctx context.Context, query domain.ScanQuery, guard driven.CallGuard) ([]domain.RawItem, error) {
	var items []domain.RawItem

	for page := 0; page < a.opts.MaxPages; page++ {
		var resp searchResponse
		start := page * a.opts.PageSize

		build := func(ctx context.Context) (*http.Request, error) {
			body, err := json.Marshal(searchRequest{
				Keyword:        query.Terms,
				Rows:           a.opts.PageSize,
				StartRecordNum: start,
				OppStatuses:    "posted",
			})
			if err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				a.opts.BaseURL+"/v1/api/search2", bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		}
		decode := func(body []byte) error {
			resp = searchResponse{}
			return json.Unmarshal(body, &resp)
		}

		if err := a.client.Do(ctx, guard, build, decode); err != nil {
			return items, err
		}

		for _, hit := range resp.Data.OppHits {
			item := domain.RawItem{
				Source:     SourceName,
				ExternalID: hit.Number,
				Title:      hit.Title,
				Payload: map[string]string{
					"agency": hit.AgencyCode,
					"cfda":   strings.Join(hit.CFDAList, ","),
					"opp_id": hit.ID,
				},
			}
			if ts, err := time.Parse(openDateLayout, hit.OpenDate); err == nil {
				item.PublishedAt = ts
			}
			if !query.Since.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(query.Since) {
				continue
			}
			items = append(items, item)
		}

		logger.Debug("%s: page %d, %d hits (total %d)", SourceName, page, len(resp.Data.OppHits), resp.Data.HitCount)

		if len(resp.Data.OppHits) < a.opts.PageSize || start+a.opts.PageSize >= resp.Data.HitCount {
			break
		}
	}

	return items, nil
}
