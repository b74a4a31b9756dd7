package domain

import (
	"fmt"
	"time"
)

// ItemKey uniquely identifies a RawItem across runs.
// Format: "source/external_id". Stable as long as the upstream API
// keeps its identifiers stable.
type ItemKey string

// MakeKey builds an ItemKey from a source name and an external identifier.
func MakeKey(source, externalID string) ItemKey {
	return ItemKey(fmt.Sprintf("%s/%s", source, externalID))
}

// RawItem is one normalised funding-opportunity record as produced by a
// source adapter. Immutable once produced for a given run.
type RawItem struct {
	// Source is the name of the adapter that produced this item.
	Source string `json:"source"`

	// ExternalID is the upstream identifier (opportunity number, GUID, ...).
	ExternalID string `json:"external_id"`

	// Title is the listing title.
	Title string `json:"title"`

	// PublishedAt is the upstream publication date, zero if unknown.
	PublishedAt time.Time `json:"published_at"`

	// Payload carries source-specific fields (agency, CFDA number, URL, ...)
	// that downstream scoring consumes opaquely.
	Payload map[string]string `json:"payload,omitempty"`
}

// Key returns the cross-run identity key for this item.
func (i *RawItem) Key() ItemKey {
	return MakeKey(i.Source, i.ExternalID)
}

// Equal reports whether the tracked fields of two items match.
// Used by change detection to decide Modified vs Unchanged.
func (i *RawItem) Equal(other *RawItem) bool {
	if other == nil {
		return false
	}
	if i.Source != other.Source || i.ExternalID != other.ExternalID {
		return false
	}
	if i.Title != other.Title || !i.PublishedAt.Equal(other.PublishedAt) {
		return false
	}
	if len(i.Payload) != len(other.Payload) {
		return false
	}
	for k, v := range i.Payload {
		if other.Payload[k] != v {
			return false
		}
	}
	return true
}
