// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for literator: the canonical
// Paper record, its validation rules, and the configuration structs the CLI
// materializes at startup.
package types

import (
	"strings"
	"time"
)

// Source identifies the bibliographic database a record came from.
type Source string

const (
	SourceScopus Source = "scopus"
	SourceADS    Source = "adsabs"
)

// MinPublicationYear is the earliest publication year accepted as plausible.
const MinPublicationYear = 1900

// Author is one entry in a paper's ordered author list.
type Author struct {
	// Name is the author's display name as returned by the source.
	Name string `json:"name" yaml:"name"`

	// Affiliation is the author's institution, when the source provides one.
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
}

// Paper is the canonical, source-agnostic representation of one paper.
// (Source, ExternalID) is unique within the store; a non-empty DOI is
// unique across the whole store and acts as the cross-source identity key.
type Paper struct {
	// Source identifies the origin database (e.g. "scopus").
	Source Source `json:"source" yaml:"source"`

	// ExternalID is the provider-assigned identifier, unique within Source
	// (a Scopus EID, an ADS bibcode).
	ExternalID string `json:"external_id" yaml:"external_id"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract, when available.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []Author `json:"authors" yaml:"authors"`

	// PublicationYear is the year of publication. Zero means unknown.
	PublicationYear int `json:"publication_year,omitempty" yaml:"publication_year,omitempty"`

	// Journal is the publication venue, when available.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// DOI is the normalized DOI: lower-cased, without a URL or "doi:" prefix.
	// Empty when the source did not supply one.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is a link to the record at the source.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// CitationCount is the citation count as of the last fetch. It only
	// moves upward across merges.
	CitationCount int `json:"citation_count" yaml:"citation_count"`

	// Keywords lists author-supplied keywords.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// FetchedAt is the timestamp of the last successful sync from the source.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// Validate checks the canonical invariants: Title, Source, and ExternalID
// must be non-empty, CitationCount non-negative, and PublicationYear either
// zero (unknown) or within the plausible range [1900, current year + 1].
func (p *Paper) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	case p.Source == "":
		return &ValidationError{Field: "source", Reason: "must not be empty"}
	case strings.TrimSpace(p.ExternalID) == "":
		return &ValidationError{Field: "external_id", Reason: "must not be empty"}
	case p.CitationCount < 0:
		return &ValidationError{Field: "citation_count", Reason: "must not be negative"}
	}

	if p.PublicationYear != 0 {
		maxYear := time.Now().Year() + 1
		if p.PublicationYear < MinPublicationYear || p.PublicationYear > maxYear {
			return &ValidationError{Field: "publication_year", Reason: "outside plausible range"}
		}
	}
	return nil
}

// doiPrefixes are stripped from the front of raw DOI strings.
var doiPrefixes = []string{
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"https://doi.org/",
	"http://doi.org/",
	"doi:",
}

// NormalizeDOI lower-cases a raw DOI and strips URL and "doi:" prefixes.
// A value that does not start with "10." after stripping is not a DOI and
// normalizes to the empty string.
func NormalizeDOI(raw string) string {
	doi := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(doi, prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	if !strings.HasPrefix(doi, "10.") {
		return ""
	}
	return doi
}
