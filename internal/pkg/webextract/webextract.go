package webextract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ErrEmptyContent is returned when a page yields no readable text.
var ErrEmptyContent = fmt.Errorf("no content extracted from url")

// Extractor fetches a web page and extracts its readable text.
type Extractor struct {
	httpClient *http.Client
}

func New() *Extractor {
	return &Extractor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ExtractText fetches rawURL and returns its readable plain text. Returns
// ErrEmptyContent if the extracted text is empty after trimming.
func (e *Extractor) ExtractText(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build url request failed: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch url status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("extract readable content failed: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// NameFromURL derives a display filename from the last path segment, the way
// the document list labels web sources.
func NameFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 && idx < len(trimmed)-1 {
		if name := trimmed[idx+1:]; name != "" && !strings.Contains(name, "://") {
			return name
		}
	}
	return "webpage"
}
