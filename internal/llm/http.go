package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// postJSON sends payload to url and returns the raw 200 response body.
// Non-200 responses become *APIError.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Provider:   provider,
			Status:     resp.StatusCode,
			Body:       truncateBody(string(respBody), 500),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return respBody, nil
}

func truncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
