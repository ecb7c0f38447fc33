package tonindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const notFoundSentinel = "entity not found"

// Action is one action reported by the settlement-event feed.
type Action struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Event is the settlement-event feed's view of one transaction, keyed by
// the external in-message hash. Raw keeps the untouched feed payload for
// the purchase outcome.
type Event struct {
	Actions []Action        `json:"actions"`
	Error   string          `json:"error"`
	Raw     json.RawMessage `json:"-"`
}

// TerminalStatus returns the first action's status when it is terminal.
func (e *Event) TerminalStatus() (string, bool) {
	if len(e.Actions) == 0 {
		return "", false
	}
	switch s := e.Actions[0].Status; s {
	case "ok", "failed":
		return s, true
	}
	return "", false
}

// NotFound reports whether the feed has not indexed the transaction yet.
func (e *Event) NotFound() bool {
	return e.Error == notFoundSentinel
}

// EventsClient polls the tonapi settlement-event feed.
type EventsClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewEventsClient creates a mainnet feed client. The API key is optional.
func NewEventsClient(apiKey string) *EventsClient {
	return &EventsClient{
		BaseURL: "https://tonapi.io",
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: requestTimeout},
	}
}

// Event fetches the feed entry for one transaction handle. A non-200
// response is an error; callers treat errors as "no answer yet" and keep
// polling within their own bounds.
func (c *EventsClient) Event(ctx context.Context, eventID string) (*Event, error) {
	endpoint := fmt.Sprintf("%s/v2/events/%s", c.BaseURL, url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build event request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event %s: %w", eventID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read event response: %w", err)
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event response: %w", err)
	}
	ev.Raw = body

	// tonapi reports unknown events with a 404 and the sentinel error body;
	// that is an answer, not a transport failure.
	if resp.StatusCode != http.StatusOK && !ev.NotFound() {
		return nil, fmt.Errorf("event feed returned status %d", resp.StatusCode)
	}
	return &ev, nil
}
