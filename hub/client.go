// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the root URL of the hub's REST API.
	BaseURL string
	// Token is the bearer token sent with every request.
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is an authenticated hub client for one agent.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new hub client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("hub: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("hub: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SessionSignals fetches signals for a session. A nil query.AfterID
// requests the session's full retained backlog; otherwise only signals
// with id strictly greater than *AfterID are returned, oldest first.
func (c *Client) SessionSignals(ctx context.Context, sessionID int64, query SignalQuery) ([]Signal, error) {
	values := url.Values{}
	if query.AfterID != nil {
		values.Set("after_id", strconv.FormatInt(*query.AfterID, 10))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.ExcludeSender != "" {
		values.Set("exclude_sender", query.ExcludeSender)
	}

	path := fmt.Sprintf("/sessions/%d/signals", sessionID)
	body, err := c.doRequest(ctx, http.MethodGet, path, "sessionSignals", nil, values)
	if err != nil {
		return nil, err
	}

	var response struct {
		Signals []Signal `json:"signals"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("hub: parsing signals response: %w", err)
	}
	return response.Signals, nil
}

// PublishChannelMessage publishes one message onto a session's
// realtime channel. This is the single side-effecting call per logical
// agent reply.
func (c *Client) PublishChannelMessage(ctx context.Context, sessionID int64, channelType, requestID string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hub: encoding channel payload: %w", err)
	}

	requestBody := struct {
		Type      string          `json:"type"`
		RequestID string          `json:"request_id,omitempty"`
		Payload   json.RawMessage `json:"payload"`
	}{
		Type:      channelType,
		RequestID: requestID,
		Payload:   encoded,
	}

	path := fmt.Sprintf("/sessions/%d/channel", sessionID)
	_, err = c.doRequest(ctx, http.MethodPost, path, "publishChannelMessage", requestBody, nil)
	return err
}

// MarkNotificationRead marks one notification as read. Idempotent on
// the hub side; marking an already-read notification succeeds.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	path := fmt.Sprintf("/notifications/%d/read", notificationID)
	_, err := c.doRequest(ctx, http.MethodPost, path, "markNotificationRead", nil, nil)
	return err
}

// SubmitHeartbeat submits one heartbeat body for this agent.
func (c *Client) SubmitHeartbeat(ctx context.Context, body any) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/agent/heartbeat", "submitHeartbeat", body, nil)
	return err
}

// doRequest performs one hub API request. On a non-2xx response the
// body is read and discarded in full: hub error bodies can echo
// request content, tokens, and authorization material, so the only
// error detail that survives is the operation name and status code.
func (c *Client) doRequest(ctx context.Context, method, path, operation string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("hub: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("hub: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("hub: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("hub: reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	c.logger.Warn("hub operation failed",
		"operation", operation,
		"status", response.StatusCode)
	return nil, &Error{Operation: operation, StatusCode: response.StatusCode}
}
