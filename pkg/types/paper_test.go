// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPaper() Paper {
	return Paper{
		Source:          SourceScopus,
		ExternalID:      "2-s2.0-85100000001",
		Title:           "Efficient Attention Mechanisms for Transformers",
		Authors:         []Author{{Name: "Smith, J."}},
		PublicationYear: 2021,
		CitationCount:   5,
		FetchedAt:       time.Now(),
	}
}

func TestPaperValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Paper)
		wantField string
	}{
		{"valid paper", func(p *Paper) {}, ""},
		{"missing title", func(p *Paper) { p.Title = "" }, "title"},
		{"whitespace title", func(p *Paper) { p.Title = "   " }, "title"},
		{"missing source", func(p *Paper) { p.Source = "" }, "source"},
		{"missing external id", func(p *Paper) { p.ExternalID = "" }, "external_id"},
		{"negative citations", func(p *Paper) { p.CitationCount = -1 }, "citation_count"},
		{"year too early", func(p *Paper) { p.PublicationYear = 1899 }, "publication_year"},
		{"year in far future", func(p *Paper) { p.PublicationYear = time.Now().Year() + 2 }, "publication_year"},
		{"year zero means unknown", func(p *Paper) { p.PublicationYear = 0 }, ""},
		{"next year is plausible", func(p *Paper) { p.PublicationYear = time.Now().Year() + 1 }, ""},
		{"min year is plausible", func(p *Paper) { p.PublicationYear = MinPublicationYear }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPaper()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare DOI", "10.1038/s41467-021-23778-6", "10.1038/s41467-021-23778-6"},
		{"https URL prefix", "https://doi.org/10.1038/s41467-021-23778-6", "10.1038/s41467-021-23778-6"},
		{"http URL prefix", "http://doi.org/10.1/x", "10.1/x"},
		{"dx URL prefix", "https://dx.doi.org/10.1/x", "10.1/x"},
		{"doi scheme prefix", "doi:10.1/x", "10.1/x"},
		{"upper case lowered", "10.1234/ABC.DEF", "10.1234/abc.def"},
		{"surrounding whitespace", "  10.1/x \n", "10.1/x"},
		{"empty", "", ""},
		{"not a DOI", "hdl:2027/mdp.39015", ""},
		{"bare URL without suffix", "https://doi.org/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDOI(tt.raw))
		})
	}
}
