package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/notify"
)

// envelope is the JSON wrapper every backend endpoint responds with.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// PendingResult is the payload of the pending-notifications poll. Total is the
// authoritative unread count that overwrites any locally accumulated delta.
type PendingResult struct {
	Notifications []notify.Notification `json:"notifications"`
	Total         int                   `json:"total"`
}

// Client talks to the notification REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a backend client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithComponent("backend"),
	}
}

// VapidPublicKey fetches the server's asymmetric push key. The caller bounds
// this with a context deadline; an expired fetch disables push only.
func (c *Client) VapidPublicKey(ctx context.Context) (string, error) {
	var data struct {
		PublicKey string `json:"publicKey"`
	}
	if err := c.get(ctx, "/notifications/vapid-public-key", nil, &data); err != nil {
		return "", err
	}
	return data.PublicKey, nil
}

// Subscribe reports the device's push subscription and returns the device ID
// the backend assigned.
func (c *Client) Subscribe(ctx context.Context, userID string, info notify.DeviceInfo) (string, error) {
	body := map[string]any{
		"userId":     userID,
		"deviceInfo": info,
	}
	var data struct {
		DeviceID string `json:"deviceId"`
	}
	if err := c.post(ctx, "/notifications/subscribe", body, &data); err != nil {
		return "", err
	}
	return data.DeviceID, nil
}

// MarkRead is the HTTP half of the mark-read dual write.
func (c *Client) MarkRead(ctx context.Context, notificationID, userID string) error {
	body := map[string]any{
		"notificationId": notificationID,
		"userId":         userID,
	}
	return c.post(ctx, "/notifications/mark-read", body, nil)
}

// MarkAllRead is the HTTP half of the mark-all-read dual write.
func (c *Client) MarkAllRead(ctx context.Context, userID string) error {
	body := map[string]any{
		"userId": userID,
	}
	return c.post(ctx, "/notifications/mark-all-read", body, nil)
}

// Pending fetches a bounded page of undelivered notifications plus the
// server's authoritative unread total.
func (c *Client) Pending(ctx context.Context, userID string, limit int) (*PendingResult, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("limit", strconv.Itoa(limit))

	var data PendingResult
	if err := c.get(ctx, "/notifications/pending", q, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// History fetches a page of past notifications.
func (c *Client) History(ctx context.Context, userID string, limit, offset int) ([]notify.Notification, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var data struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	if err := c.get(ctx, "/notifications/history", q, &data); err != nil {
		return nil, err
	}
	return data.Notifications, nil
}

// Dismissed reports a notification dismissal for analytics. Fire-and-forget at
// the call site; failures are the caller's to swallow.
func (c *Client) Dismissed(ctx context.Context, notificationID string) error {
	body := map[string]any{
		"notificationId": notificationID,
	}
	return c.post(ctx, "/notifications/dismissed", body, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("backend returned non-OK status",
			slog.String("path", req.URL.Path),
			slog.Int("status_code", resp.StatusCode))
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("backend error: %s", env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
