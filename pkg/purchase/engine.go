package purchase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/parcrypto/starshop/pkg/models"
	"github.com/parcrypto/starshop/pkg/payload"
	"github.com/parcrypto/starshop/pkg/retry"
	"github.com/parcrypto/starshop/pkg/tonindex"
)

// Checkout runs the commerce-endpoint protocol for one purchase unit.
type Checkout interface {
	BuyStars(ctx context.Context, buyer string, quantity, hideSender int) (*models.CheckoutResult, error)
	BuyPremiumGift(ctx context.Context, buyer string, months, hideSender int) (*models.CheckoutResult, error)
}

// Sender settles one required payment on-chain. Failures are folded into
// the returned attempt.
type Sender interface {
	Transfer(ctx context.Context, destination string, amountNano int64, memo string) *models.TransferAttempt
}

// SenderFactory acquires a settlement client for one purchase attempt.
// The release function runs on every exit path of the critical section.
type SenderFactory func(ctx context.Context) (Sender, func(), error)

// EventFeed reports the terminal status of a submitted transaction by its
// handle.
type EventFeed interface {
	Event(ctx context.Context, eventID string) (*tonindex.Event, error)
}

// Config bounds the engine's polling, resend and batching behavior.
type Config struct {
	// PollInterval is the settlement-event poll cadence.
	PollInterval time.Duration
	// MaxPollAttempts bounds polling per send attempt (360 * 10s ~ 1h).
	MaxPollAttempts int
	// MaxSendAttempts bounds checkout resubmissions, initial one included.
	MaxSendAttempts int
	// BatchPause lets on-chain and indexer state settle between batches.
	BatchPause time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MaxPollAttempts == 0 {
		c.MaxPollAttempts = 360
	}
	if c.MaxSendAttempts == 0 {
		c.MaxSendAttempts = 5
	}
	if c.BatchPause == 0 {
		c.BatchPause = 2 * time.Second
	}
	return c
}

// Engine orchestrates checkout and settlement. Every purchase of either
// kind is serialized through one wallet: the mutex guards the
// checkout-and-submission critical section because a seqno baseline
// captured before a transfer must not be invalidated by a concurrent
// submission from the same wallet. Confirmation polling runs outside the
// lock; seqno races only matter between submissions.
type Engine struct {
	mu       sync.Mutex
	checkout Checkout
	senders  SenderFactory
	feed     EventFeed
	cfg      Config
}

// New creates a purchase engine.
func New(checkout Checkout, senders SenderFactory, feed EventFeed, cfg Config) *Engine {
	return &Engine{
		checkout: checkout,
		senders:  senders,
		feed:     feed,
		cfg:      cfg.withDefaults(),
	}
}

// PurchaseStars buys the given quantity of stars for a buyer. Quantities
// above the single-batch ceiling are split into sequential batches. Only
// validation failures surface as errors; every external failure is folded
// into the outcome.
func (e *Engine) PurchaseStars(ctx context.Context, buyer string, quantity, hideSender int) (*models.PurchaseOutcome, error) {
	if strings.TrimSpace(buyer) == "" {
		return nil, ErrInvalidBuyer
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if quantity <= SingleBatchCeiling {
		return e.starsSingleBatch(ctx, buyer, quantity, hideSender), nil
	}
	return e.starsMultiBatch(ctx, buyer, quantity, hideSender), nil
}

// PurchaseGift buys a gift subscription of the given duration. Months are
// restricted to the upstream tier set and rejected before any external
// call. There is no batching and no resend: polling is confirmation-only.
func (e *Engine) PurchaseGift(ctx context.Context, buyer string, months, hideSender int) (*models.PurchaseOutcome, error) {
	if strings.TrimSpace(buyer) == "" {
		return nil, ErrInvalidBuyer
	}
	if months != 3 && months != 6 && months != 12 {
		return nil, ErrInvalidMonths
	}

	sub := e.submit(ctx, func(ctx context.Context) (*models.CheckoutResult, error) {
		return e.checkout.BuyPremiumGift(ctx, buyer, months, hideSender)
	}, payload.DecodePremiumMemo)

	outcome := newOutcome(sub)
	if len(sub.transfers) == 0 {
		outcome.Status = models.FAILED
		return outcome, nil
	}
	e.confirmOnly(ctx, outcome)
	return outcome, nil
}

// submission collects what one locked checkout-and-transfer pass produced.
type submission struct {
	checkout  *models.CheckoutResult
	transfers []*models.TransferAttempt
	err       error
}

func (s *submission) txHash() string {
	if len(s.transfers) > 0 {
		return s.transfers[0].TxHash
	}
	return ""
}

// submit runs one checkout and settles its payments while holding the
// wallet guard. The wallet client is scoped to this submission and
// released on every exit path.
func (e *Engine) submit(ctx context.Context, checkout func(ctx context.Context) (*models.CheckoutResult, error), memo func(string) string) *submission {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &submission{}
	sender, release, err := e.senders(ctx)
	if err != nil {
		sub.err = fmt.Errorf("failed to acquire wallet: %w", err)
		return sub
	}
	defer release()

	result, err := checkout(ctx)
	sub.checkout = result
	if err != nil {
		sub.err = err
		return sub
	}

	for _, payment := range result.Payments {
		attempt := sender.Transfer(ctx, payment.Destination, payment.AmountNano, memo(payment.Payload))
		sub.transfers = append(sub.transfers, attempt)
	}
	return sub
}

func (e *Engine) submitStars(ctx context.Context, buyer string, quantity, hideSender int) *submission {
	return e.submit(ctx, func(ctx context.Context) (*models.CheckoutResult, error) {
		return e.checkout.BuyStars(ctx, buyer, quantity, hideSender)
	}, starsMemo)
}

func (e *Engine) starsSingleBatch(ctx context.Context, buyer string, quantity, hideSender int) *models.PurchaseOutcome {
	sub := e.submitStars(ctx, buyer, quantity, hideSender)
	outcome := newOutcome(sub)
	if len(sub.transfers) == 0 {
		// Nothing was owed or the checkout never produced payments; either
		// way no money moved and there is nothing to confirm.
		outcome.Status = models.FAILED
		return outcome
	}
	e.confirmWithResend(ctx, outcome, buyer, quantity, hideSender)
	return outcome
}

func (e *Engine) starsMultiBatch(ctx context.Context, buyer string, quantity, hideSender int) *models.PurchaseOutcome {
	plan := PlanBatches(quantity)
	total := &models.PurchaseOutcome{TotalQuantity: quantity}

	settled := true
	for i, batchQty := range plan {
		batch := e.starsSingleBatch(ctx, buyer, batchQty, hideSender)
		batch.BatchInfo = &models.BatchInfo{Number: i + 1, Total: len(plan), Quantity: batchQty}

		total.Batches = append(total.Batches, batch)
		total.Transfers = append(total.Transfers, batch.Transfers...)
		total.TotalNano += batch.TotalNano
		if batch.Status != models.SETTLED {
			settled = false
		}

		if i < len(plan)-1 {
			if err := retry.Sleep(ctx, e.cfg.BatchPause); err != nil {
				settled = false
				break
			}
		}
	}

	if settled {
		total.Status = models.SETTLED
	} else {
		total.Status = models.FAILED
	}
	if len(total.Batches) > 0 {
		total.TxHash = total.Batches[0].TxHash
	}
	total.TotalTon = models.FormatTON(total.TotalNano)
	return total
}

// confirmWithResend polls the settlement-event feed for the tracked
// transaction handle. When the feed keeps reporting the entity as unknown
// the checkout is resubmitted under the same logical purchase, replacing
// the tracked handle, up to the send-attempt bound. An explicit terminal
// status ends polling immediately.
func (e *Engine) confirmWithResend(ctx context.Context, outcome *models.PurchaseOutcome, buyer string, quantity, hideSender int) {
	eventID := outcome.TxHash
	sendAttempts := 1 // the initial submission counts
	notFoundStreak := 0

	for sent := true; sent; {
		sent = false
		for poll := 0; poll < e.cfg.MaxPollAttempts; poll++ {
			ev, err := e.feed.Event(ctx, eventID)
			if err == nil && ev != nil {
				if status, terminal := ev.TerminalStatus(); terminal {
					outcome.Status = models.PurchaseStatus(status)
					outcome.SettlementEvent = ev.Raw
					return
				}
				if ev.NotFound() {
					notFoundStreak++
					// A single miss can be indexer lag; repeated misses mean
					// the transfer never reached the chain.
					if notFoundStreak >= 2 {
						if sendAttempts >= e.cfg.MaxSendAttempts {
							outcome.Status = models.FAILED
							return
						}
						sendAttempts++
						notFoundStreak = 0

						sub := e.submitStars(ctx, buyer, quantity, hideSender)
						appendSubmission(outcome, sub)
						if sub.txHash() == "" {
							outcome.Status = models.FAILED
							return
						}
						eventID = sub.txHash()
						outcome.TxHash = eventID
						sent = true
						break
					}
				} else {
					notFoundStreak = 0
				}
			}
			if err := retry.Sleep(ctx, e.cfg.PollInterval); err != nil {
				outcome.Status = models.FAILED
				return
			}
		}
	}
	// Poll budget exhausted without a terminal answer.
	outcome.Status = models.FAILED
}

// confirmOnly polls the feed until a terminal status or the poll budget
// runs out. Used by the gift flow, which never resubmits.
func (e *Engine) confirmOnly(ctx context.Context, outcome *models.PurchaseOutcome) {
	for poll := 0; poll < e.cfg.MaxPollAttempts; poll++ {
		ev, err := e.feed.Event(ctx, outcome.TxHash)
		if err == nil && ev != nil {
			if status, terminal := ev.TerminalStatus(); terminal {
				outcome.Status = models.PurchaseStatus(status)
				outcome.SettlementEvent = ev.Raw
				return
			}
		}
		if err := retry.Sleep(ctx, e.cfg.PollInterval); err != nil {
			break
		}
	}
	outcome.Status = models.FAILED
}

func newOutcome(sub *submission) *models.PurchaseOutcome {
	outcome := &models.PurchaseOutcome{Status: models.UNKNOWN}
	appendSubmission(outcome, sub)
	outcome.TxHash = sub.txHash()
	return outcome
}

func appendSubmission(outcome *models.PurchaseOutcome, sub *submission) {
	if sub.checkout != nil {
		outcome.Checkouts = append(outcome.Checkouts, sub.checkout)
	}
	outcome.Transfers = append(outcome.Transfers, sub.transfers...)
	for _, t := range sub.transfers {
		outcome.TotalNano += t.AmountNano
	}
	outcome.TotalTon = models.FormatTON(outcome.TotalNano)
}

var base64Shaped = regexp.MustCompile(`^[A-Za-z0-9+/=_-]+$`)

// starsMemo picks the transfer comment for a stars payment: raw text
// payloads pass through verbatim, base64-shaped ones are decoded from
// their cell encoding.
func starsMemo(p string) string {
	if p != "" && (strings.Contains(p, payload.PremiumMarker) || !base64Shaped.MatchString(p)) {
		return p
	}
	return payload.DecodeComment(p)
}
