package tonindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Source resolves a wallet's current on-chain sequence number. A false ok
// means the source could not answer; it is never an error, callers fall
// through to the next source or assume a zero baseline as a last resort.
type Source interface {
	Seqno(ctx context.Context, address string) (uint32, bool)
}

// requestTimeout bounds every single indexer call.
const requestTimeout = 6 * time.Second

// ToncenterV3 reads the wallet seqno from the toncenter v3 API.
type ToncenterV3 struct {
	BaseURL string
	Client  *http.Client
}

// NewToncenterV3 creates a mainnet toncenter source.
func NewToncenterV3() *ToncenterV3 {
	return &ToncenterV3{
		BaseURL: "https://toncenter.com",
		Client:  &http.Client{Timeout: requestTimeout},
	}
}

var _ Source = (*ToncenterV3)(nil)

func (t *ToncenterV3) Seqno(ctx context.Context, address string) (uint32, bool) {
	endpoint := fmt.Sprintf("%s/api/v3/wallet?address=%s", t.BaseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, false
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var body struct {
		Seqno *uint32 `json:"seqno"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Seqno == nil {
		return 0, false
	}
	return *body.Seqno, true
}

// TonhubV4 resolves the seqno through the tonhub v4 API's two-step
// protocol: fetch the latest masterchain block, then run the seqno get
// method against that block for the address.
type TonhubV4 struct {
	BaseURL string
	Client  *http.Client
}

// NewTonhubV4 creates a mainnet tonhub source.
func NewTonhubV4() *TonhubV4 {
	return &TonhubV4{
		BaseURL: "https://mainnet-v4.tonhubapi.com",
		Client:  &http.Client{Timeout: requestTimeout},
	}
}

var _ Source = (*TonhubV4)(nil)

func (t *TonhubV4) Seqno(ctx context.Context, address string) (uint32, bool) {
	block, ok := t.latestBlock(ctx)
	if !ok {
		return 0, false
	}

	endpoint := fmt.Sprintf("%s/block/%d/%s/run/seqno", t.BaseURL, block, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, false
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var body struct {
		Result []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Result) == 0 {
		return 0, false
	}
	if body.Result[0].Type != "int" {
		return 0, false
	}
	seqno, err := strconv.ParseUint(body.Result[0].Value, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(seqno), true
}

func (t *TonhubV4) latestBlock(ctx context.Context) (uint64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/block/latest", nil)
	if err != nil {
		return 0, false
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	// The block reference arrives either as {"last": {"seqno": N}} or as a
	// bare number under "last"/"seqno".
	var body struct {
		Last  json.RawMessage `json:"last"`
		Seqno json.RawMessage `json:"seqno"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false
	}
	ref := body.Last
	if len(ref) == 0 {
		ref = body.Seqno
	}
	if len(ref) == 0 {
		return 0, false
	}

	var nested struct {
		Seqno uint64 `json:"seqno"`
	}
	if err := json.Unmarshal(ref, &nested); err == nil && nested.Seqno > 0 {
		return nested.Seqno, true
	}
	var plain uint64
	if err := json.Unmarshal(ref, &plain); err == nil && plain > 0 {
		return plain, true
	}
	return 0, false
}

// Chain tries each source in order; the first answer wins. It resolves a
// value from whichever backend responds correctly and stays silent about
// individual failures.
type Chain struct {
	sources []Source
}

// NewChain builds an ordered fallback chain over the given sources.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

var _ Source = (*Chain)(nil)

func (c *Chain) Seqno(ctx context.Context, address string) (uint32, bool) {
	for _, s := range c.sources {
		if seqno, ok := s.Seqno(ctx, address); ok {
			return seqno, true
		}
	}
	return 0, false
}
