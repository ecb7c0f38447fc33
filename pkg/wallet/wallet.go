package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/parcrypto/starshop/pkg/models"
	"github.com/parcrypto/starshop/pkg/retry"
	"github.com/parcrypto/starshop/pkg/tonindex"
)

// errSeqnoNotIncreased is the cause string recorded when a submitted
// transfer was never observed as included within the ttl window.
const errSeqnoNotIncreased = "seqno_not_increased_within_ttl"

// Submitter sends one signed transfer and returns the external in-message
// hash, the handle the settlement-event feed is keyed by.
type Submitter interface {
	Submit(ctx context.Context, destination string, amountNano int64, memo string) (string, error)
}

// Config bounds the transfer confirmation behavior.
type Config struct {
	// TTL is how long a submitted transfer stays valid and how long the
	// client waits for seqno advancement before retrying.
	TTL time.Duration
	// PollInterval is the cadence of seqno lookups while confirming.
	PollInterval time.Duration
	// MaxRetries is how many times a transfer is re-submitted after the
	// first attempt.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.TTL == 0 {
		c.TTL = 60 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	return c
}

// Client settles payments from one wallet. Seqno advancement is the proof
// of inclusion: the wallet scheme offers no reliable per-transaction
// receipt lookup, so the client captures a baseline before submitting and
// waits for the counter to move past it.
type Client struct {
	sub   Submitter
	seqno tonindex.Source
	addr  string
	cfg   Config
	close func()
}

// NewFromParts wires an explicit submitter and seqno source. Tests and
// alternative transports use this directly; production wallets come from
// New in ton.go.
func NewFromParts(sub Submitter, seqno tonindex.Source, addr string, cfg Config) *Client {
	return &Client{sub: sub, seqno: seqno, addr: addr, cfg: cfg.withDefaults()}
}

// Address returns the wallet's canonical on-chain address.
func (c *Client) Address() string {
	return c.addr
}

// Close releases the client's underlying connection. Safe to call on every
// exit path.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Transfer submits a signed transfer and confirms it by waiting for the
// wallet seqno to advance past the pre-transfer baseline. Failures are
// folded into the returned attempt; the method never returns an error.
//
// A confirmation timeout re-reads the current seqno as the new baseline
// before retrying, which absorbs the case where the node accepted the
// transfer but the indexers lagged.
func (c *Client) Transfer(ctx context.Context, destination string, amountNano int64, memo string) *models.TransferAttempt {
	attempt := &models.TransferAttempt{
		Destination: destination,
		AmountNano:  amountNano,
		Memo:        memo,
	}
	if amountNano <= 0 {
		attempt.Error = "non-positive transfer amount"
		return attempt
	}

	previous, ok := c.seqno.Seqno(ctx, c.addr)
	if !ok {
		// Last-resort baseline: both indexers are down, assume a fresh wallet.
		previous = 0
	}

	var lastErr string
	err := retry.Do(ctx, retry.Policy{MaxAttempts: c.cfg.MaxRetries + 1, Delay: time.Second}, func(ctx context.Context) error {
		attempt.Attempts++

		hash, err := c.sub.Submit(ctx, destination, amountNano, memo)
		if err != nil {
			lastErr = err.Error()
			return err
		}
		attempt.TxHash = hash

		if c.waitForSeqnoIncrease(ctx, previous) {
			attempt.Succeeded = true
			lastErr = ""
			return nil
		}

		lastErr = errSeqnoNotIncreased
		if current, ok := c.seqno.Seqno(ctx, c.addr); ok {
			previous = current
		}
		return errors.New(lastErr)
	})
	if err != nil && lastErr != "" {
		attempt.Error = lastErr
	}
	return attempt
}

func (c *Client) waitForSeqnoIncrease(ctx context.Context, previous uint32) bool {
	deadline := time.Now().Add(c.cfg.TTL)
	for time.Now().Before(deadline) {
		if err := retry.Sleep(ctx, c.cfg.PollInterval); err != nil {
			return false
		}
		if current, ok := c.seqno.Seqno(ctx, c.addr); ok && current > previous {
			return true
		}
	}
	return false
}
