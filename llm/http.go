package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// requestTimeout bounds a single HTTP chat call on top of the caller's context.
const requestTimeout = time.Minute

// APIError is returned by the HTTP based clients when the API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// jsonClient posts JSON requests to one API and decodes JSON responses.
type jsonClient struct {
	baseURL string
	headers map[string]string

	client *http.Client
	logger *slog.Logger
}

func newJSONClient(baseURL, defaultURL string, headers map[string]string, logger *slog.Logger) jsonClient {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return jsonClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: headers,
		client:  &http.Client{},
		logger:  logger,
	}
}

func (c jsonClient) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	c.logger.Debug("Request Body", slog.String("path", path), slog.String("body", string(jsonBody)))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	return nil
}

// alternateRoles returns the role of the message at index i: even indexes are the user and odd
// indexes the assistant.
func alternateRoles(i int) string {
	if i%2 == 1 {
		return "assistant"
	}
	return "user"
}
