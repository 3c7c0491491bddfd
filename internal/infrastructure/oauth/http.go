package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"archie-core-integrations-layer/internal/domain"
)

const maxBodyBytes = 4 << 20

// getJSON issues a GET and decodes a JSON body. 401/403 map to
// ErrPlatformUnauthorized. Every other failed answer, and a network failure,
// is a TransportError.
func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrPlatformUnauthorized, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return &domain.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", http.StatusText(resp.StatusCode))}
	case resp.StatusCode >= http.StatusBadRequest:
		return &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", truncate(string(raw), 256)),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
