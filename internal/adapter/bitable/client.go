// Package bitable writes records into a Feishu/Lark Bitable.
package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSlack renews the tenant token before Feishu expires it.
const tokenSlack = 5 * time.Minute

// ErrNotConfigured is returned when credentials or the app token are missing.
var ErrNotConfigured = errors.New("bitable is not configured")

// Client is a minimal Feishu open platform client for Bitable records.
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	appToken   string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewClient creates a new Bitable client.
func NewClient(baseURL, appID, appSecret, appToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		appID:     appID,
		appSecret: appSecret,
		appToken:  appToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// Enabled reports whether the client has everything it needs to write records.
func (c *Client) Enabled() bool {
	return c != nil && c.appID != "" && c.appSecret != "" && c.appToken != ""
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

type createRecordRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

type createRecordResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Record struct {
			RecordID string `json:"record_id"`
		} `json:"record"`
	} `json:"data"`
}

// AddRecord creates a record in tableID and returns its record id.
func (c *Client) AddRecord(ctx context.Context, tableID string, fields map[string]interface{}) (string, error) {
	if !c.Enabled() || tableID == "" {
		return "", ErrNotConfigured
	}

	token, err := c.tenantToken(ctx)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/records",
		url.PathEscape(c.appToken), url.PathEscape(tableID))
	var resp createRecordResponse
	if err := c.post(ctx, path, token, createRecordRequest{Fields: fields}, &resp); err != nil {
		return "", err
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("bitable error [%d]: %s", resp.Code, resp.Msg)
	}
	return resp.Data.Record.RecordID, nil
}

// tenantToken returns a cached tenant access token, fetching a new one when needed.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	var resp tokenResponse
	err := c.post(ctx, "/open-apis/auth/v3/tenant_access_token/internal", "",
		tokenRequest{AppID: c.appID, AppSecret: c.appSecret}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to get tenant token: %w", err)
	}
	if resp.Code != 0 || resp.TenantAccessToken == "" {
		return "", fmt.Errorf("tenant token error [%d]: %s", resp.Code, resp.Msg)
	}

	c.token = resp.TenantAccessToken
	c.expiresAt = c.now().Add(time.Duration(resp.Expire)*time.Second - tokenSlack)
	return c.token, nil
}

func (c *Client) post(ctx context.Context, path, token string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feishu API error [%d]: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
