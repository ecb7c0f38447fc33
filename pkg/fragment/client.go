package fragment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://fragment.com"

// deviceProfile is the wallet capability blob the web client declares when
// materializing a payment link. The exact shape is part of the endpoint's
// contract.
var deviceProfile = map[string]any{
	"platform":           "browser",
	"appName":            "telegram-wallet",
	"appVersion":         "1",
	"maxProtocolVersion": 2,
	"features": []any{
		"SendTransaction",
		map[string]any{
			"name":                   "SendTransaction",
			"maxMessages":            4,
			"extraCurrencySupported": true,
		},
	},
}

// Session drives the fixed checkout protocol against the commerce
// endpoint. One Session is reusable across purchases; each step is a
// form-encoded POST to the same URL differing only in the method field.
type Session struct {
	BaseURL string
	Hash    string
	Cookies map[string]string
	Client  *http.Client
}

// NewSession creates a checkout session authenticated by the shared hash
// and session cookies.
func NewSession(hash string, cookies map[string]string) *Session {
	return &Session{
		BaseURL: defaultBaseURL,
		Hash:    hash,
		Cookies: cookies,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// call executes one checkout step and decodes the JSON response.
func (s *Session) call(ctx context.Context, form url.Values) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/api?hash=%s", s.BaseURL, url.QueryEscape(s.Hash))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for name, value := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	method := form.Get("method")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout step %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return body, nil
}

// devicePayload renders the account and device form fields for the
// payment-link step.
func devicePayload() (account, device string) {
	accountJSON, _ := json.Marshal("")
	deviceJSON, _ := json.Marshal(deviceProfile)
	return string(accountJSON), string(deviceJSON)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
