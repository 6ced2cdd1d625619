// Package inference provides LLM-assisted metadata recovery for citation
// strings that regex extraction could not resolve.
//
// The client sends the raw citation text to an OpenAI-compatible Chat
// Completions endpoint and asks for a structured JSON description of the
// referenced work (title, first author, year, journal, identifiers). The
// result feeds a metadata search against the bibliographic sources.
//
// Inference is best-effort by design: a disabled client, an API failure, or
// an unparseable response all yield empty metadata rather than an error, so
// callers degrade to whatever the regex pass already found.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/extract"
	"github.com/openshelf/bibsync-service/internal/observability"
)

// Default values for the inference client.
const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 512
)

const systemPrompt = `You are a bibliographic reference parser. Given the raw text of a single ` +
	`citation from an academic paper, identify the work it refers to. Respond with a JSON object ` +
	`containing the fields "title", "first_author" (surname only), "year", "journal", "doi" and ` +
	`"arxiv_id". Use an empty string for any field you cannot determine. Do not guess identifiers.`

// Config holds the parameters for the inference client.
type Config struct {
	// Enabled gates the client; when false InferMetadata returns empty
	// metadata without making any request.
	Enabled bool

	// APIKey is the bearer token for the Chat Completions endpoint.
	APIKey string

	// Model is the model identifier (empty means gpt-4o-mini).
	Model string

	// BaseURL is the API base URL (empty means the OpenAI default).
	BaseURL string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Temperature controls sampling; zero keeps parsing deterministic.
	Temperature float64
}

// chatRequest is the Chat Completions API request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the Chat Completions API response body.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// citationFields is the JSON structure the model is asked to produce.
type citationFields struct {
	Title       string `json:"title"`
	FirstAuthor string `json:"first_author"`
	Year        string `json:"year"`
	Journal     string `json:"journal"`
	DOI         string `json:"doi"`
	ArxivID     string `json:"arxiv_id"`
}

// Client infers citation metadata via an OpenAI-compatible Chat Completions API.
type Client struct {
	httpClient *http.Client
	config     Config
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

var _ extract.MetadataInferrer = (*Client)(nil)

// NewClient creates an inference client. Zero-value config fields fall back
// to defaults; metrics may be nil.
func NewClient(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:  cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "inference").Logger(),
	}
}

// Enabled reports whether the client will make API requests.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// InferMetadata asks the model to parse the given citation text.
//
// All failure modes short of context cancellation return empty metadata and
// a nil error: inference is an opportunistic fallback and its unavailability
// means "no data", not a sync failure.
func (c *Client) InferMetadata(ctx context.Context, text string) (extract.Metadata, error) {
	if !c.config.Enabled || strings.TrimSpace(text) == "" {
		return extract.Metadata{}, nil
	}

	start := time.Now()
	fields, errType, err := c.doRequest(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return extract.Metadata{}, fmt.Errorf("inference: %w", ctx.Err())
		}
		if c.metrics != nil {
			c.metrics.RecordInferenceRequestFailed(c.config.Model, errType)
		}
		c.logger.Warn().Err(err).Msg("metadata inference failed, continuing without it")
		return extract.Metadata{}, nil
	}

	if c.metrics != nil {
		c.metrics.RecordInferenceRequest(c.config.Model, time.Since(start).Seconds())
	}

	return convertFields(fields), nil
}

// doRequest performs a single Chat Completions request and parses the result.
// The second return value classifies the failure for metrics labelling.
func (c *Client) doRequest(ctx context.Context, text string) (citationFields, string, error) {
	chatReq := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Citation text:\n" + text},
		},
		Temperature:    c.config.Temperature,
		MaxTokens:      defaultMaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return citationFields{}, "encode", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.config.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return citationFields{}, "encode", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return citationFields{}, "transport", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return citationFields{}, "transport", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return citationFields{}, strconv.Itoa(resp.StatusCode), fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return citationFields{}, "decode", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return citationFields{}, "decode", fmt.Errorf("empty choices in response")
	}

	var fields citationFields
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &fields); err != nil {
		return citationFields{}, "decode", fmt.Errorf("parse model JSON: %w", err)
	}

	return fields, "", nil
}

// convertFields maps the model output onto extraction metadata, discarding
// anything that does not survive basic validation.
func convertFields(f citationFields) extract.Metadata {
	md := extract.Metadata{
		Title:       strings.TrimSpace(f.Title),
		FirstAuthor: strings.TrimSpace(f.FirstAuthor),
		Journal:     strings.TrimSpace(f.Journal),
		DOI:         strings.TrimSpace(f.DOI),
		ArxivID:     strings.TrimSpace(f.ArxivID),
	}

	if y, err := strconv.Atoi(strings.TrimSpace(f.Year)); err == nil && y > 0 {
		md.Year = y
	}

	return md
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
