// Package ads is the NASA ADS adapter for the remote lookup surface.
package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openshelf/bibsync-service/internal/domain"
	"github.com/openshelf/bibsync-service/internal/identifiers"
	"github.com/openshelf/bibsync-service/internal/observability"
	"github.com/openshelf/bibsync-service/internal/sources"
)

const (
	// DefaultBaseURL is the default base URL for the ADS API.
	DefaultBaseURL = "https://api.adsabs.harvard.edu/v1"

	// DefaultRateLimit is the default sustained request rate. ADS grants
	// 5000 requests per day; 5 per second keeps bursts polite.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRows is the default maximum rows per search request.
	DefaultMaxRows = 200

	// sourceName is the registry name for this source.
	sourceName = "ads"

	// searchFields is the field list requested for paper lookups.
	searchFields = "bibcode,title,author,aff,year,pub,abstract,doi,identifier,citation_count"

	// edgeFields is the reduced field list requested for graph lookups.
	edgeFields = "bibcode,title,author,year,doi,identifier"

	// citationFormat is the custom export format for citation text. Each
	// entry embeds the record's canonical abstract URL so the blob can be
	// partitioned back per bibcode.
	citationFormat = `%A (%Y), %T, %q. https://ui.adsabs.harvard.edu/abs/%R/abstract`
)

// Config contains configuration options for the ADS client.
type Config struct {
	// BaseURL is the base URL for the API. Defaults to DefaultBaseURL.
	BaseURL string

	// Token is the ADS API token, sent as a bearer credential.
	Token string

	// Timeout is the HTTP request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize.
	BurstSize int

	// MaxRows is the maximum rows per search request.
	// Defaults to DefaultMaxRows.
	MaxRows int
}

// Client implements sources.LookupClient against the ADS API.
type Client struct {
	httpClient *sources.HTTPClient
	config     Config
	metrics    *observability.Metrics
}

// Compile-time check that Client implements sources.LookupClient.
var _ sources.LookupClient = (*Client)(nil)

// NewClient creates a new ADS client. If httpClient is nil, one is created
// from the configuration with the bearer credential installed. Metrics may
// be nil.
func NewClient(cfg Config, httpClient *sources.HTTPClient, metrics *observability.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = DefaultMaxRows
	}

	if httpClient == nil {
		httpClient = sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstSize:  cfg.BurstSize,
			AuthHeader: "Authorization",
			AuthValue:  "Bearer " + cfg.Token,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		metrics:    metrics,
	}
}

// SourceName returns the registry name for this source.
func (c *Client) SourceName() string {
	return sourceName
}

// Capabilities reports what ADS can serve.
func (c *Client) Capabilities() domain.SourceCapabilities {
	return domain.SourceCapabilities{
		HasReferences: true,
		HasCitations:  true,
		HasPDF:        true,
		HasBibtex:     true,
	}
}

// GetByDOI fetches the paper registered under a DOI.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.RemotePaper, error) {
	if doi == "" {
		return nil, domain.NewValidationError("doi", "DOI is required")
	}
	return c.searchOne(ctx, fmt.Sprintf(`doi:"%s"`, doi), "doi")
}

// GetByArxivID fetches the paper registered under an arXiv ID.
func (c *Client) GetByArxivID(ctx context.Context, arxivID string) (*domain.RemotePaper, error) {
	if arxivID == "" {
		return nil, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}
	id := identifiers.NormalizeArxivID(arxivID)
	return c.searchOne(ctx, fmt.Sprintf(`identifier:"arXiv:%s"`, id), "arxiv")
}

// GetByBibcode fetches the paper registered under a bibcode.
func (c *Client) GetByBibcode(ctx context.Context, bibcode string) (*domain.RemotePaper, error) {
	if bibcode == "" {
		return nil, domain.NewValidationError("bibcode", "bibcode is required")
	}
	return c.searchOne(ctx, fmt.Sprintf(`bibcode:"%s"`, bibcode), "bibcode")
}

// SmartSearch runs the title/first-author/year/journal heuristic and
// returns the best match.
func (c *Client) SmartSearch(ctx context.Context, query sources.SmartSearchQuery) (*domain.RemotePaper, error) {
	if query.Title == "" {
		return nil, domain.NewValidationError("title", "smart search needs a title")
	}

	parts := []string{fmt.Sprintf(`title:"%s"`, query.Title)}
	if query.FirstAuthor != "" {
		parts = append(parts, fmt.Sprintf(`author:"^%s"`, query.FirstAuthor))
	}
	if query.Year > 0 {
		parts = append(parts, fmt.Sprintf("year:%d", query.Year))
	}
	if query.Journal != "" {
		parts = append(parts, fmt.Sprintf(`pub:"%s"`, query.Journal))
	}

	return c.searchOne(ctx, strings.Join(parts, " "), "smartsearch")
}

// BatchByBibcodes fetches canonical metadata for many bibcodes in a single
// bigquery call. Bibcodes the source does not know are absent from the
// result, not an error.
func (c *Client) BatchByBibcodes(ctx context.Context, bibcodes []string) ([]*domain.RemotePaper, error) {
	if len(bibcodes) == 0 {
		return []*domain.RemotePaper{}, nil
	}

	endpoint := fmt.Sprintf("%s/search/bigquery?q=*:*&fl=%s&rows=%d",
		c.config.BaseURL, url.QueryEscape(searchFields), len(bibcodes))
	body := "bibcode\n" + strings.Join(bibcodes, "\n")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "big-query/csv")

	resp, err := c.do(req, "bigquery")
	if err != nil {
		return nil, err
	}

	papers := make([]*domain.RemotePaper, 0, len(resp.Response.Docs))
	for _, d := range resp.Response.Docs {
		papers = append(papers, convertDoc(d))
	}
	return papers, nil
}

// BulkCitationText exports formatted citation text for many bibcodes in
// one call.
func (c *Client) BulkCitationText(ctx context.Context, bibcodes []string) (string, error) {
	if len(bibcodes) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(exportRequest{Bibcode: bibcodes, Format: citationFormat})
	if err != nil {
		return "", fmt.Errorf("encoding export request: %w", err)
	}

	endpoint := c.config.BaseURL + "/export/custom"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure("export", "transport")
		return "", domain.NewExternalAPIError(sourceName, 0, "export request failed", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp, "export"); err != nil {
		return "", err
	}

	var exported exportResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&exported); err != nil {
		c.recordFailure("export", "decode")
		return "", domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding export response", err)
	}

	c.record("export", start)
	return exported.Export, nil
}

// References returns the works a paper cites.
func (c *Client) References(ctx context.Context, bibcode string) ([]*domain.Edge, error) {
	return c.searchEdges(ctx, fmt.Sprintf(`references(bibcode:"%s")`, bibcode), "references")
}

// Citations returns the works citing a paper.
func (c *Client) Citations(ctx context.Context, bibcode string) ([]*domain.Edge, error) {
	return c.searchEdges(ctx, fmt.Sprintf(`citations(bibcode:"%s")`, bibcode), "citations")
}

// searchOne runs a query expecting a single record; zero hits is not-found.
func (c *Client) searchOne(ctx context.Context, query, endpoint string) (*domain.RemotePaper, error) {
	resp, err := c.search(ctx, query, searchFields, 1, endpoint)
	if err != nil {
		return nil, err
	}
	if len(resp.Response.Docs) == 0 {
		return nil, domain.NewNotFoundError("paper", query)
	}
	return convertDoc(resp.Response.Docs[0]), nil
}

// searchEdges runs a graph query, converting every hit into an edge.
func (c *Client) searchEdges(ctx context.Context, query, endpoint string) ([]*domain.Edge, error) {
	if strings.Contains(query, `:""`) {
		return nil, domain.NewValidationError("bibcode", "bibcode is required")
	}

	resp, err := c.search(ctx, query, edgeFields, c.config.MaxRows, endpoint)
	if err != nil {
		return nil, err
	}

	edges := make([]*domain.Edge, 0, len(resp.Response.Docs))
	for _, d := range resp.Response.Docs {
		edges = append(edges, convertEdge(d))
	}
	return edges, nil
}

// search issues a GET to /search/query.
func (c *Client) search(ctx context.Context, query, fields string, rows int, endpoint string) (*searchResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("fl", fields)
	q.Set("rows", strconv.Itoa(rows))

	searchURL := c.config.BaseURL + "/search/query?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return c.do(req, endpoint)
}

// do executes a search-shaped request and decodes its envelope.
func (c *Client) do(req *http.Request, endpoint string) (*searchResponse, error) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(endpoint, "transport")
		return nil, domain.NewExternalAPIError(sourceName, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp, endpoint); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var decoded searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&decoded); err != nil {
		c.recordFailure(endpoint, "decode")
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding response", err)
	}

	c.record(endpoint, start)
	return &decoded, nil
}

// handleErrorResponse maps non-2xx responses onto typed API errors.
func (c *Client) handleErrorResponse(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	c.recordFailure(endpoint, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message != "" {
			return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
		}
	}

	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

func (c *Client) record(endpoint string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordSourceRequest(sourceName, endpoint, time.Since(start).Seconds())
	}
}

func (c *Client) recordFailure(endpoint, errorType string) {
	if c.metrics != nil {
		c.metrics.RecordSourceRequestFailed(sourceName, endpoint, errorType)
	}
}

// convertDoc maps an API record onto the canonical remote shape.
func convertDoc(d doc) *domain.RemotePaper {
	paper := &domain.RemotePaper{
		SourceID:      d.Bibcode,
		Bibcode:       d.Bibcode,
		Journal:       d.Pub,
		Abstract:      d.Abstract,
		CitationCount: d.CitationCount,
		Authors:       convertAuthors(d),
	}

	if len(d.Title) > 0 {
		paper.Title = d.Title[0]
	}
	if len(d.DOI) > 0 {
		paper.DOI = identifiers.CleanDOI(d.DOI[0])
	}
	if id, ok := identifiers.ExtractArxivID(d.Identifier); ok {
		paper.ArxivID = identifiers.NormalizeArxivID(id)
	}
	if year, err := strconv.Atoi(d.Year); err == nil {
		paper.Year = year
	}

	return paper
}

// convertEdge maps an API record onto a citation edge target snapshot.
func convertEdge(d doc) *domain.Edge {
	edge := &domain.Edge{
		TargetBibcode:  d.Bibcode,
		TargetSourceID: d.Bibcode,
		TargetAuthors:  convertAuthors(d),
	}

	if len(d.Title) > 0 {
		edge.TargetTitle = d.Title[0]
	}
	if len(d.DOI) > 0 {
		edge.TargetDOI = identifiers.CleanDOI(d.DOI[0])
	}
	if id, ok := identifiers.ExtractArxivID(d.Identifier); ok {
		edge.TargetArxivID = identifiers.NormalizeArxivID(id)
	}
	if year, err := strconv.Atoi(d.Year); err == nil {
		edge.TargetYear = year
	}

	return edge
}

// convertAuthors pairs author names with affiliations where available.
func convertAuthors(d doc) []domain.Author {
	authors := make([]domain.Author, 0, len(d.Author))
	for i, name := range d.Author {
		author := domain.Author{Name: name}
		if i < len(d.Aff) && d.Aff[i] != "-" {
			author.Affiliation = d.Aff[i]
		}
		authors = append(authors, author)
	}
	return authors
}
