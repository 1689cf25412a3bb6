// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/twelman/literator/internal/httputil"
	"github.com/twelman/literator/pkg/types"
)

// scopusAPIBase is the Scopus search endpoint. Declared as a var so tests
// can substitute an httptest server.
var scopusAPIBase = "https://api.elsevier.com/content/search/scopus"

const defaultPageSize = 25

// ScopusClient queries the Elsevier Scopus Search API. Pagination is
// offset-based; the page token carries the next start offset.
type ScopusClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	apiKey    string
	apiURL    string
	userAgent string
	pageSize  int
}

// NewScopusClient builds a Scopus client from the fetch configuration.
func NewScopusClient(cfg *types.FetchConfig) *ScopusClient {
	apiURL := cfg.Scopus.APIURL
	if apiURL == "" {
		apiURL = scopusAPIBase
	}
	pageSize := cfg.Scopus.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	rps := cfg.Scopus.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &ScopusClient{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		apiKey:    cfg.Scopus.APIKey,
		apiURL:    apiURL,
		userAgent: cfg.UserAgent,
		pageSize:  pageSize,
	}
}

// Name returns the source identifier.
func (c *ScopusClient) Name() string { return string(types.SourceScopus) }

// FetchPage fetches one page of raw Scopus entries. An empty pageToken
// fetches the first page; the returned NextToken is the start offset of
// the following page, or empty when the result set is exhausted.
func (c *ScopusClient) FetchPage(ctx context.Context, req SearchRequest, pageToken string) (Page, error) {
	if c.apiKey == "" {
		return Page{}, fmt.Errorf("Scopus API key is required: set scopus-api-key in .secrets/ or SCOPUS_API_KEY")
	}
	if strings.TrimSpace(req.Query) == "" {
		return Page{}, fmt.Errorf("empty Scopus query")
	}

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid Scopus page token %q", pageToken)
		}
		start = n
	}

	params := url.Values{
		"query": {buildScopusQuery(req)},
		"count": {strconv.Itoa(c.pageSize)},
		"start": {strconv.Itoa(start)},
		"view":  {"COMPLETE"},
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("X-ELS-APIKey", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.client, httpReq, 0)
	if err != nil {
		return Page{}, fmt.Errorf("Scopus API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("Scopus API returned HTTP %d", resp.StatusCode)
	}

	var sr scopusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Page{}, fmt.Errorf("parsing Scopus response: %w", err)
	}

	total, _ := strconv.Atoi(sr.SearchResults.TotalResults)
	page := Page{Items: sr.SearchResults.Entry}

	next := start + len(page.Items)
	if len(page.Items) == c.pageSize && next < total {
		page.NextToken = strconv.Itoa(next)
	}
	return page, nil
}

// buildScopusQuery appends PUBYEAR restrictions to the free-text query.
func buildScopusQuery(req SearchRequest) string {
	q := req.Query
	if req.StartYear > 0 {
		q += fmt.Sprintf(" AND PUBYEAR > %d", req.StartYear-1)
	}
	if req.EndYear > 0 {
		q += fmt.Sprintf(" AND PUBYEAR < %d", req.EndYear+1)
	}
	return q
}

type scopusResponse struct {
	SearchResults struct {
		TotalResults string            `json:"opensearch:totalResults"`
		Entry        []json.RawMessage `json:"entry"`
	} `json:"search-results"`
}

// ScopusAdapter normalizes one Scopus entry into a canonical Paper.
type ScopusAdapter struct{}

// Name returns the source identifier.
func (a *ScopusAdapter) Name() string { return string(types.SourceScopus) }

// Scopus entry JSON structure. The author field may be a list or a single
// object, so it stays raw until parseScopusAuthors.
type scopusEntry struct {
	Title           string          `json:"dc:title"`
	Description     string          `json:"dc:description"`
	Identifier      string          `json:"dc:identifier"`
	EID             string          `json:"eid"`
	DOI             string          `json:"prism:doi"`
	CoverDate       string          `json:"prism:coverDate"`
	CoverDisplay    string          `json:"prism:coverDisplayDate"`
	PublicationName string          `json:"prism:publicationName"`
	URL             string          `json:"prism:url"`
	CitedByCount    string          `json:"citedby-count"`
	AuthKeywords    string          `json:"authkeywords"`
	Author          json.RawMessage `json:"author"`
}

type scopusAuthor struct {
	AuthName  string `json:"authname"`
	AffilName string `json:"affilname"`
}

// Normalize maps a raw Scopus entry to a canonical Paper. The EID is the
// external identifier, falling back to the SCOPUS_ID when absent.
func (a *ScopusAdapter) Normalize(raw json.RawMessage) (types.Paper, error) {
	var entry scopusEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return types.Paper{}, &AdapterError{
			Source: types.SourceScopus,
			Reason: "unexpected entry shape",
			Raw:    raw,
			Err:    err,
		}
	}

	externalID := entry.EID
	if externalID == "" {
		externalID = strings.TrimPrefix(entry.Identifier, "SCOPUS_ID:")
	}

	citations := 0
	if entry.CitedByCount != "" {
		if n, err := strconv.Atoi(entry.CitedByCount); err == nil && n >= 0 {
			citations = n
		}
	}

	paper := types.Paper{
		Source:          types.SourceScopus,
		ExternalID:      externalID,
		Title:           strings.TrimSpace(entry.Title),
		Abstract:        strings.TrimSpace(entry.Description),
		Authors:         parseScopusAuthors(entry.Author),
		PublicationYear: scopusYear(entry),
		Journal:         entry.PublicationName,
		DOI:             types.NormalizeDOI(entry.DOI),
		URL:             entry.URL,
		CitationCount:   citations,
		Keywords:        splitKeywords(entry.AuthKeywords),
		FetchedAt:       time.Now().UTC(),
	}

	if err := paper.Validate(); err != nil {
		return types.Paper{}, &AdapterError{
			Source: types.SourceScopus,
			Reason: err.Error(),
			Raw:    raw,
			Err:    err,
		}
	}
	return paper, nil
}

// parseScopusAuthors handles both forms Scopus returns: a list of author
// objects, or a single object when the paper has one author.
func parseScopusAuthors(raw json.RawMessage) []types.Author {
	if len(raw) == 0 {
		return nil
	}

	var list []scopusAuthor
	if err := json.Unmarshal(raw, &list); err != nil {
		var single scopusAuthor
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []scopusAuthor{single}
	}

	var authors []types.Author
	for _, a := range list {
		name := strings.TrimSpace(a.AuthName)
		if name == "" {
			continue
		}
		authors = append(authors, types.Author{Name: name, Affiliation: a.AffilName})
	}
	return authors
}

// scopusYear extracts the publication year from the cover date, falling
// back to the first four digits of the display date.
func scopusYear(entry scopusEntry) int {
	if t, err := time.Parse("2006-01-02", entry.CoverDate); err == nil {
		return t.Year()
	}
	for _, s := range []string{entry.CoverDate, entry.CoverDisplay} {
		if len(s) >= 4 {
			if y, err := strconv.Atoi(s[:4]); err == nil {
				return y
			}
		}
	}
	return 0
}

// splitKeywords splits the comma-separated authkeywords field.
func splitKeywords(s string) []string {
	var keywords []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
