package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Order is one paid storefront order.
type Order struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	BuyerUsername string `json:"buyer_username"`
}

// Client is the slice of the storefront API the watcher and worker use.
type Client interface {
	// PaidOrders lists orders that have been paid for, newest first.
	PaidOrders(ctx context.Context) ([]Order, error)
	// ChatIDByName resolves the chat with the given storefront user.
	ChatIDByName(ctx context.Context, username string) (string, error)
	// SendMessage posts a message into a chat.
	SendMessage(ctx context.Context, chatID, text string) error
}

// HTTPClient talks to the storefront API. Authentication is a session
// cookie issued to the seller account.
type HTTPClient struct {
	BaseURL   string
	GoldenKey string
	Client    *http.Client
}

// NewHTTPClient creates a storefront client for the given base URL.
func NewHTTPClient(baseURL, goldenKey string) *HTTPClient {
	return &HTTPClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		GoldenKey: goldenKey,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Make sure we conform to the interface
var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build storefront request: %w", err)
	}
	c.authorize(req)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("storefront request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storefront returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode storefront response: %w", err)
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: "golden_key", Value: c.GoldenKey})
	req.Header.Set("Accept", "application/json")
}

// PaidOrders lists orders in the paid state.
func (c *HTTPClient) PaidOrders(ctx context.Context) ([]Order, error) {
	var payload struct {
		Orders []Order `json:"orders"`
	}
	query := url.Values{"state": {"paid"}}
	if err := c.get(ctx, "/api/orders", query, &payload); err != nil {
		return nil, err
	}
	return payload.Orders, nil
}

// ChatIDByName resolves the chat with the given user.
func (c *HTTPClient) ChatIDByName(ctx context.Context, username string) (string, error) {
	var payload struct {
		ChatID string `json:"chat_id"`
	}
	query := url.Values{"name": {username}}
	if err := c.get(ctx, "/api/chats", query, &payload); err != nil {
		return "", err
	}
	if payload.ChatID == "" {
		return "", fmt.Errorf("no chat found for user %q", username)
	}
	return payload.ChatID, nil
}

// SendMessage posts a message into a chat.
func (c *HTTPClient) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]string{"chat_id": chatID, "text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/messages", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to build storefront request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("storefront request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storefront returned status %d for message send", resp.StatusCode)
	}
	return nil
}
