// Package sopclient is a client for the sopdesk HTTP and WebSocket API.
package sopclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// APIError is an error reported by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sopdesk error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("sopdesk error %s: %s", e.Code, e.Message)
}

// Client calls the sopdesk HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate runs one dialogue turn.
func (c *Client) Generate(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	var resp domain.TurnResponse
	if err := c.post(ctx, "/v1/sop/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveBlueprint archives a blueprint.
func (c *Client) SaveBlueprint(ctx context.Context, bp domain.Blueprint) (*domain.SaveBlueprintResponse, error) {
	var resp domain.SaveBlueprintResponse
	if err := c.post(ctx, "/v1/sop/save", domain.SaveBlueprintRequest{Blueprint: &bp}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error != "" {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
