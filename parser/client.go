package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	vexora "github.com/PeterKuehne/vexora"
)

// Client calls the parser microservice, which handles layout-aware parsing
// of formats the local parsers do not (DOCX, scanned PDFs, HTML exports).
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client (60s timeout).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithClientLogger sets a structured logger. Default: discard.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a parser service client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  vexora.NopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Parse uploads a file and returns its block-level parse. The service
// assigns block positions in reading order; the client trusts them as-is.
func (c *Client) Parse(ctx context.Context, filename string, content []byte) (ParsedDocument, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return ParsedDocument{}, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return ParsedDocument{}, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", &body)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("parser service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ParsedDocument{}, &vexora.ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(b),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var doc ParsedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return ParsedDocument{}, fmt.Errorf("decode parser response: %w", err)
	}
	if doc.DocumentID == "" {
		doc.DocumentID = vexora.NewID()
	}
	if doc.Metadata.Filename == "" {
		doc.Metadata.Filename = filename
	}

	c.logger.Debug("document parsed",
		"filename", filename,
		"blocks", len(doc.Blocks),
		"pages", doc.Metadata.PageCount,
		"elapsed_ms", time.Since(start).Milliseconds())
	return doc, nil
}

// retryAfter parses a Retry-After header value given in seconds.
// HTTP-date values are ignored.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
