package sheets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/models"
)

const (
	DefaultBaseURL = "https://docs.google.com"
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodyBytes caps the export size; larger sheets are rejected
	// rather than parsed from a partial body.
	DefaultMaxBodyBytes = 10 << 20

	userAgent = "sheetwatch/1.0"
)

// Options configures a Client
type Options struct {
	BaseURL    string        // Export host, overridable for tests
	Timeout    time.Duration // Whole-request timeout
	HTTPClient *http.Client  // Optional; replaces the instrumented default
	MaxBody    int64         // Response size limit, DefaultMaxBodyBytes when zero
}

// Client fetches data from public Google Sheets using CSV export
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxBody    int64
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxBody:    maxBody,
	}
}

// ExportURL returns the CSV export URL for one tab of a spreadsheet
func (c *Client) ExportURL(spreadsheetID, sheetName string) string {
	q := url.Values{}
	q.Set("tqx", "out:csv")
	q.Set("sheet", sheetName)
	return fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?%s", c.baseURL, url.PathEscape(spreadsheetID), q.Encode())
}

// SheetURL returns the link a person would open to view the spreadsheet
func (c *Client) SheetURL(spreadsheetID string) string {
	return fmt.Sprintf("%s/spreadsheets/d/%s", c.baseURL, url.PathEscape(spreadsheetID))
}

// FetchSnapshot downloads a tab as CSV and parses it into a Snapshot
func (c *Client) FetchSnapshot(ctx context.Context, spreadsheetID, sheetName string) (*models.Snapshot, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is empty: %w", sherrors.ErrInvalidConfig)
	}
	if strings.TrimSpace(sheetName) == "" {
		return nil, fmt.Errorf("sheet name is empty: %w", sherrors.ErrInvalidConfig)
	}

	body, err := c.get(ctx, c.ExportURL(spreadsheetID, sheetName))
	if err != nil {
		return nil, err
	}

	snapshot, err := ParseSnapshot(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sheet %q: %w", sheetName, err)
	}
	return snapshot, nil
}

func (c *Client) get(ctx context.Context, exportURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet data: %v: %w", err, sherrors.ErrNetworkFailure)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("status %d: make sure the sheet is shared as \"anyone with the link can view\": %w",
			resp.StatusCode, sherrors.ErrNotPublic)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("status %d: check the spreadsheet id and sheet name: %w",
			resp.StatusCode, sherrors.ErrSheetNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, sherrors.ErrUnexpectedStatus)
	}

	// One byte past the limit tells a full body apart from a cut one
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet data: %v: %w", err, sherrors.ErrNetworkFailure)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("sheet export exceeds %d bytes: %w", c.maxBody, sherrors.ErrResponseTooLarge)
	}

	if isHTML(resp.Header.Get("Content-Type"), body) {
		return nil, htmlPageError(body)
	}

	return body, nil
}

func isHTML(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/html" {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 512)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// htmlPageError classifies an HTML page served where CSV was expected.
// Private sheets redirect to a sign-in page and deleted ones can land on
// Google's error interstitial, both answering 200.
func htmlPageError(body []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("received HTML page instead of CSV: %w", sherrors.ErrNotPublic)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if isNotFoundPage(doc, title) {
		return fmt.Errorf("received error page %q: check the spreadsheet id and sheet name: %w",
			title, sherrors.ErrSheetNotFound)
	}
	return fmt.Errorf("received HTML page %q instead of CSV: %w", title, sherrors.ErrNotPublic)
}

func isNotFoundPage(doc *goquery.Document, title string) bool {
	lower := strings.ToLower(title)
	if strings.Contains(lower, "page not found") || strings.Contains(lower, "(not found)") {
		return true
	}
	return doc.Find("#af-error-container").Length() > 0
}
