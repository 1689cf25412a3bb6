// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source talks to bibliographic-database APIs and normalizes their
// heterogeneous result records into the canonical Paper schema. Each source
// (Scopus, NASA ADS) contributes a Client that pages through raw results and
// an Adapter that maps one raw item to a Paper; the rest of the system never
// sees provider-specific field names.
package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twelman/literator/pkg/types"
)

// SearchRequest holds the parameters of one literature search.
type SearchRequest struct {
	// Query is the free-text search string.
	Query string

	// StartYear and EndYear bound the publication year, inclusive.
	// Zero means unbounded.
	StartYear int
	EndYear   int

	// MaxResults caps the total number of items fetched across pages.
	MaxResults int
}

// Page is one page of raw provider results. Items are opaque to callers;
// only the matching Adapter can interpret them. NextToken is empty on the
// last page.
type Page struct {
	Items     []json.RawMessage
	NextToken string
}

// Client fetches pages of raw results from one provider. Pagination state
// lives entirely in the token; passing an empty token fetches the first page.
type Client interface {
	Name() string
	FetchPage(ctx context.Context, req SearchRequest, pageToken string) (Page, error)
}

// Adapter maps one provider's raw result item into a canonical Paper.
// New sources are added by implementing this interface, not by branching
// inside shared code.
type Adapter interface {
	Name() string
	Normalize(raw json.RawMessage) (types.Paper, error)
}

// AdapterError reports a raw item that could not produce a valid Paper.
// Raw keeps the offending payload for diagnosis.
type AdapterError struct {
	Source types.Source
	Reason string
	Raw    json.RawMessage
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %s", e.Source, e.Reason)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ForSource returns the client and adapter pair for a source name.
func ForSource(name string, cfg *types.FetchConfig) (Client, Adapter, error) {
	switch types.Source(name) {
	case types.SourceScopus:
		return NewScopusClient(cfg), &ScopusAdapter{}, nil
	case types.SourceADS:
		return NewADSClient(cfg), &ADSAdapter{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q: use %s or %s", name, types.SourceScopus, types.SourceADS)
	}
}
