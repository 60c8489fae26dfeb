package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-success response from the leader.
type APIError struct {
	Status  int    // Status is the HTTP status code
	Message string // Message is the server's error message
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// doJSON performs a request and decodes the JSON response into result.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request:\n%w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s:\n%w", method, path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}

		json.NewDecoder(resp.Body).Decode(&e)

		return fmt.Errorf("%s %s: %w", method, path, &APIError{Status: resp.StatusCode, Message: e.Error})
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response:\n%w", path, err)
	}

	return nil
}
