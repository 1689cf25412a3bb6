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

// adsAPIBase is the NASA ADS search endpoint. Declared as a var so tests
// can substitute an httptest server.
var adsAPIBase = "https://api.adsabs.harvard.edu/v1/search/query"

const adsFields = "bibcode,title,abstract,author,aff,year,doi,citation_count,keyword,pub"

// ADSClient queries the NASA ADS search API. Pagination is offset-based;
// the page token carries the next start offset.
type ADSClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	apiKey    string
	apiURL    string
	userAgent string
	pageSize  int
}

// NewADSClient builds an ADS client from the fetch configuration.
func NewADSClient(cfg *types.FetchConfig) *ADSClient {
	apiURL := cfg.ADS.APIURL
	if apiURL == "" {
		apiURL = adsAPIBase
	}
	pageSize := cfg.ADS.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	rps := cfg.ADS.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &ADSClient{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		apiKey:    cfg.ADS.APIKey,
		apiURL:    apiURL,
		userAgent: cfg.UserAgent,
		pageSize:  pageSize,
	}
}

// Name returns the source identifier.
func (c *ADSClient) Name() string { return string(types.SourceADS) }

// FetchPage fetches one page of raw ADS documents.
func (c *ADSClient) FetchPage(ctx context.Context, req SearchRequest, pageToken string) (Page, error) {
	if c.apiKey == "" {
		return Page{}, fmt.Errorf("ADS API key is required: set ads-api-key in .secrets/ or ADS_API_KEY")
	}
	if strings.TrimSpace(req.Query) == "" {
		return Page{}, fmt.Errorf("empty ADS query")
	}

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid ADS page token %q", pageToken)
		}
		start = n
	}

	params := url.Values{
		"q":     {buildADSQuery(req)},
		"fl":    {adsFields},
		"rows":  {strconv.Itoa(c.pageSize)},
		"start": {strconv.Itoa(start)},
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.client, httpReq, 0)
	if err != nil {
		return Page{}, fmt.Errorf("ADS API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("ADS API returned HTTP %d", resp.StatusCode)
	}

	var ar adsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return Page{}, fmt.Errorf("parsing ADS response: %w", err)
	}

	page := Page{Items: ar.Response.Docs}

	next := start + len(page.Items)
	if len(page.Items) == c.pageSize && next < ar.Response.NumFound {
		page.NextToken = strconv.Itoa(next)
	}
	return page, nil
}

// buildADSQuery appends a year range filter to the free-text query.
func buildADSQuery(req SearchRequest) string {
	q := req.Query
	switch {
	case req.StartYear > 0 && req.EndYear > 0:
		q += fmt.Sprintf(" year:[%d TO %d]", req.StartYear, req.EndYear)
	case req.StartYear > 0:
		q += fmt.Sprintf(" year:[%d TO *]", req.StartYear)
	case req.EndYear > 0:
		q += fmt.Sprintf(" year:[* TO %d]", req.EndYear)
	}
	return q
}

type adsResponse struct {
	Response struct {
		NumFound int               `json:"numFound"`
		Docs     []json.RawMessage `json:"docs"`
	} `json:"response"`
}

// ADSAdapter normalizes one ADS document into a canonical Paper.
type ADSAdapter struct{}

// Name returns the source identifier.
func (a *ADSAdapter) Name() string { return string(types.SourceADS) }

// ADS document JSON structure. Title and DOI arrive as arrays; author and
// aff are parallel arrays in the same order.
type adsDoc struct {
	Bibcode       string   `json:"bibcode"`
	Title         []string `json:"title"`
	Abstract      string   `json:"abstract"`
	Author        []string `json:"author"`
	Aff           []string `json:"aff"`
	Year          string   `json:"year"`
	DOI           []string `json:"doi"`
	CitationCount int      `json:"citation_count"`
	Keyword       []string `json:"keyword"`
	Pub           string   `json:"pub"`
}

// Normalize maps a raw ADS document to a canonical Paper. The bibcode is
// the external identifier.
func (a *ADSAdapter) Normalize(raw json.RawMessage) (types.Paper, error) {
	var doc adsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.Paper{}, &AdapterError{
			Source: types.SourceADS,
			Reason: "unexpected document shape",
			Raw:    raw,
			Err:    err,
		}
	}

	title := ""
	if len(doc.Title) > 0 {
		title = strings.TrimSpace(doc.Title[0])
	}

	doi := ""
	if len(doc.DOI) > 0 {
		doi = types.NormalizeDOI(doc.DOI[0])
	}

	year := 0
	if y, err := strconv.Atoi(doc.Year); err == nil {
		year = y
	}

	citations := doc.CitationCount
	if citations < 0 {
		citations = 0
	}

	paper := types.Paper{
		Source:          types.SourceADS,
		ExternalID:      doc.Bibcode,
		Title:           title,
		Abstract:        strings.TrimSpace(doc.Abstract),
		Authors:         adsAuthors(doc.Author, doc.Aff),
		PublicationYear: year,
		Journal:         doc.Pub,
		DOI:             doi,
		CitationCount:   citations,
		Keywords:        doc.Keyword,
		FetchedAt:       time.Now().UTC(),
	}

	if err := paper.Validate(); err != nil {
		return types.Paper{}, &AdapterError{
			Source: types.SourceADS,
			Reason: err.Error(),
			Raw:    raw,
			Err:    err,
		}
	}
	return paper, nil
}

// adsAuthors zips the parallel author and affiliation arrays. ADS marks a
// missing affiliation with "-".
func adsAuthors(names, affs []string) []types.Author {
	var authors []types.Author
	for i, name := range names {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		author := types.Author{Name: name}
		if i < len(affs) && affs[i] != "-" {
			author.Affiliation = strings.TrimSpace(affs[i])
		}
		authors = append(authors, author)
	}
	return authors
}
