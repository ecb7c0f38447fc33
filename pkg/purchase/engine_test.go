package purchase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/parcrypto/starshop/pkg/models"
	"github.com/parcrypto/starshop/pkg/purchase/mocks"
	"github.com/parcrypto/starshop/pkg/tonindex"
)

func testConfig() Config {
	return Config{
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 10,
		MaxSendAttempts: 5,
		BatchPause:      time.Millisecond,
	}
}

type harness struct {
	checkout     *mocks.Checkout
	sender       *mocks.Sender
	feed         *mocks.EventFeed
	engine       *Engine
	acquisitions int
}

func newHarness(cfg Config) *harness {
	h := &harness{
		checkout: new(mocks.Checkout),
		sender:   new(mocks.Sender),
		feed:     new(mocks.EventFeed),
	}
	factory := func(ctx context.Context) (Sender, func(), error) {
		h.acquisitions++
		return h.sender, func() {}, nil
	}
	h.engine = New(h.checkout, factory, h.feed, cfg)
	return h
}

func checkoutWithPayment(dest string, nano int64) *models.CheckoutResult {
	return &models.CheckoutResult{
		Trace:     []models.TraceEntry{{Step: "getBuyStarsLink", Response: map[string]any{"ok": true}}},
		Payments:  []models.RequiredPayment{{Destination: dest, AmountNano: nano}},
		RequestID: "req-1",
	}
}

func okAttempt(dest string, nano int64, hash string) *models.TransferAttempt {
	return &models.TransferAttempt{Destination: dest, AmountNano: nano, Succeeded: true, TxHash: hash, Attempts: 1}
}

func okEvent() *tonindex.Event {
	raw := json.RawMessage(`{"actions":[{"type":"TonTransfer","status":"ok"}]}`)
	return &tonindex.Event{Actions: []tonindex.Action{{Type: "TonTransfer", Status: "ok"}}, Raw: raw}
}

func notFoundEvent() *tonindex.Event {
	return &tonindex.Event{Error: "entity not found", Raw: json.RawMessage(`{"error":"entity not found"}`)}
}

func TestPurchaseStars_Validation(t *testing.T) {
	h := newHarness(testConfig())

	_, err := h.engine.PurchaseStars(context.Background(), "", 100, 0)
	assert.ErrorIs(t, err, ErrInvalidBuyer)

	_, err = h.engine.PurchaseStars(context.Background(), "@buyer", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	h.checkout.AssertNotCalled(t, "BuyStars", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, h.acquisitions)
}

func TestPurchaseGift_InvalidMonths(t *testing.T) {
	h := newHarness(testConfig())

	for _, months := range []int{0, 1, 2, 4, 7, 24} {
		_, err := h.engine.PurchaseGift(context.Background(), "@buyer", months, 0)
		assert.ErrorIs(t, err, ErrInvalidMonths, "months=%d", months)
	}

	h.checkout.AssertNotCalled(t, "BuyPremiumGift", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, h.acquisitions)
}

func TestPurchaseStars_SingleBatchSettles(t *testing.T) {
	h := newHarness(testConfig())

	h.checkout.On("BuyStars", mock.Anything, "@buyer", 100, 0).Return(checkoutWithPayment("EQDest", 25_000_000_000), nil).Once()
	h.sender.On("Transfer", mock.Anything, "EQDest", int64(25_000_000_000), "").Return(okAttempt("EQDest", 25_000_000_000, "hash-1")).Once()
	h.feed.On("Event", mock.Anything, "hash-1").Return(okEvent(), nil).Once()

	outcome, err := h.engine.PurchaseStars(context.Background(), "@buyer", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, models.SETTLED, outcome.Status)
	assert.Equal(t, "hash-1", outcome.TxHash)
	assert.Equal(t, int64(25_000_000_000), outcome.TotalNano)
	assert.Equal(t, "25", outcome.TotalTon)
	assert.Len(t, outcome.Checkouts, 1)
	assert.NotEmpty(t, outcome.SettlementEvent)
	h.checkout.AssertExpectations(t)
	h.sender.AssertExpectations(t)
	h.feed.AssertExpectations(t)
}

func TestPurchaseStars_NoPaymentsIsFailedWithoutTransfers(t *testing.T) {
	h := newHarness(testConfig())

	empty := &models.CheckoutResult{Trace: []models.TraceEntry{{Step: "searchStarsRecipient"}}}
	h.checkout.On("BuyStars", mock.Anything, "@nobody", 100, 0).Return(empty, nil).Once()

	outcome, err := h.engine.PurchaseStars(context.Background(), "@nobody", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, models.FAILED, outcome.Status)
	assert.Empty(t, outcome.Transfers)
	h.sender.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.feed.AssertNotCalled(t, "Event", mock.Anything, mock.Anything)
}

func TestPurchaseStars_ResendOnNotFound(t *testing.T) {
	h := newHarness(testConfig())

	h.checkout.On("BuyStars", mock.Anything, "@buyer", 100, 0).Return(checkoutWithPayment("EQDest", 1_000_000_000), nil).Twice()
	h.sender.On("Transfer", mock.Anything, "EQDest", int64(1_000_000_000), "").
		Return(okAttempt("EQDest", 1_000_000_000, "hash-1")).Once()
	h.sender.On("Transfer", mock.Anything, "EQDest", int64(1_000_000_000), "").
		Return(okAttempt("EQDest", 1_000_000_000, "hash-2")).Once()

	// Two not-found polls trigger one checkout resubmission; the new handle
	// then settles.
	h.feed.On("Event", mock.Anything, "hash-1").Return(notFoundEvent(), nil).Twice()
	h.feed.On("Event", mock.Anything, "hash-2").Return(okEvent(), nil).Once()

	outcome, err := h.engine.PurchaseStars(context.Background(), "@buyer", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, models.SETTLED, outcome.Status)
	assert.Equal(t, "hash-2", outcome.TxHash)
	assert.Len(t, outcome.Checkouts, 2)
	assert.Len(t, outcome.Transfers, 2)
	h.checkout.AssertExpectations(t)
	h.feed.AssertExpectations(t)
}

func TestPurchaseStars_ResendBudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSendAttempts = 2
	h := newHarness(cfg)

	h.checkout.On("BuyStars", mock.Anything, "@buyer", 100, 0).Return(checkoutWithPayment("EQDest", 1_000_000_000), nil)
	h.sender.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okAttempt("EQDest", 1_000_000_000, "hash-x"))
	h.feed.On("Event", mock.Anything, mock.Anything).Return(notFoundEvent(), nil)

	outcome, err := h.engine.PurchaseStars(context.Background(), "@buyer", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, models.FAILED, outcome.Status)
	// Initial submission plus exactly one resend.
	h.checkout.AssertNumberOfCalls(t, "BuyStars", 2)
}

func TestPurchaseStars_PollBudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPollAttempts = 3
	h := newHarness(cfg)

	h.checkout.On("BuyStars", mock.Anything, "@buyer", 100, 0).Return(checkoutWithPayment("EQDest", 1_000_000_000), nil).Once()
	h.sender.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okAttempt("EQDest", 1_000_000_000, "hash-1")).Once()
	pending := &tonindex.Event{Actions: []tonindex.Action{{Status: "pending"}}}
	h.feed.On("Event", mock.Anything, "hash-1").Return(pending, nil)

	outcome, err := h.engine.PurchaseStars(context.Background(), "@buyer", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, models.FAILED, outcome.Status)
	h.feed.AssertNumberOfCalls(t, "Event", 3)
}

func TestPurchaseStars_MultiBatchAggregates(t *testing.T) {
	h := newHarness(testConfig())

	hashes := []string{"hash-a", "hash-b", "hash-c"}
	for i, qty := range []int{5000, 5000, 50} {
		h.checkout.On("BuyStars", mock.Anything, "@buyer", qty, 0).Return(checkoutWithPayment("EQDest", 1_000_000_000), nil).Once()
		h.sender.On("Transfer", mock.Anything, "EQDest", int64(1_000_000_000), "").
			Return(okAttempt("EQDest", 1_000_000_000, hashes[i])).Once()
		h.feed.On("Event", mock.Anything, hashes[i]).Return(okEvent(), nil).Once()
	}

	outcome, err := h.engine.PurchaseStars(context.Background(), "@buyer", 10050, 0)
	require.NoError(t, err)

	assert.Equal(t, models.SETTLED, outcome.Status)
	assert.Equal(t, 10050, outcome.TotalQuantity)
	assert.Equal(t, int64(3_000_000_000), outcome.TotalNano)
	assert.Equal(t, "hash-a", outcome.TxHash)
	require.Len(t, outcome.Batches, 3)
	for i, batch := range outcome.Batches {
		require.NotNil(t, batch.BatchInfo)
		assert.Equal(t, i+1, batch.BatchInfo.Number)
		assert.Equal(t, 3, batch.BatchInfo.Total)
	}
	assert.Equal(t, []int{5000, 5000, 50}, []int{
		outcome.Batches[0].BatchInfo.Quantity,
		outcome.Batches[1].BatchInfo.Quantity,
		outcome.Batches[2].BatchInfo.Quantity,
	})
	assert.Len(t, outcome.Transfers, 3)
}

func TestPurchaseStars_MultiBatchFailureFailsAggregate(t *testing.T) {
	h := newHarness(testConfig())

	h.checkout.On("BuyStars", mock.Anything, "@buyer", 5000, 0).Return(checkoutWithPayment("EQDest", 1_000_000_000), nil).Once()
	h.sender.On("Transfer", mock.Anything, "EQDest", int64(1_000_000_000), "").
		Return(okAttempt("EQDest", 1_000_000_000, "hash-a")).Once()
	h.feed.On("Event", mock.Anything, "hash-a").Return(okEvent(), nil).Once()

	// The trailing batch finds no recipient anymore: zero payments.
	h.checkout.On("BuyStars", mock.Anything, "@buyer", 51, 0).Return(&models.CheckoutResult{}, nil).Once()

	outcome, err := h.engine.PurchaseStars(context.Background(), "@buyer", 5051, 0)
	require.NoError(t, err)

	assert.Equal(t, models.FAILED, outcome.Status)
	require.Len(t, outcome.Batches, 2)
	assert.Equal(t, models.SETTLED, outcome.Batches[0].Status)
	assert.Equal(t, models.FAILED, outcome.Batches[1].Status)
}

func TestPurchaseStars_SenderAcquisitionFailure(t *testing.T) {
	checkout := new(mocks.Checkout)
	feed := new(mocks.EventFeed)
	factory := func(ctx context.Context) (Sender, func(), error) {
		return nil, nil, errors.New("liteservers unreachable")
	}
	engine := New(checkout, factory, feed, testConfig())

	outcome, err := engine.PurchaseStars(context.Background(), "@buyer", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, models.FAILED, outcome.Status)
	assert.Empty(t, outcome.Transfers)
	checkout.AssertNotCalled(t, "BuyStars", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseGift_Settles(t *testing.T) {
	h := newHarness(testConfig())

	memoText := "Telegram Premium for 3 months\n\nRef#777"
	encoded := base64.StdEncoding.EncodeToString([]byte(memoText))
	result := &models.CheckoutResult{
		Payments:  []models.RequiredPayment{{Destination: "EQGift", AmountNano: 12_000_000_000, Payload: encoded}},
		RequestID: "prem-1",
	}
	h.checkout.On("BuyPremiumGift", mock.Anything, "@friend", 3, 1).Return(result, nil).Once()
	h.sender.On("Transfer", mock.Anything, "EQGift", int64(12_000_000_000), mock.MatchedBy(func(memo string) bool {
		return strings.HasPrefix(memo, "Telegram Premium")
	})).Return(okAttempt("EQGift", 12_000_000_000, "hash-g")).Once()
	h.feed.On("Event", mock.Anything, "hash-g").Return(okEvent(), nil).Once()

	outcome, err := h.engine.PurchaseGift(context.Background(), "@friend", 3, 1)
	require.NoError(t, err)

	assert.Equal(t, models.SETTLED, outcome.Status)
	assert.Equal(t, "hash-g", outcome.TxHash)
	h.sender.AssertExpectations(t)
}

func TestPurchaseGift_NoResendOnNotFound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPollAttempts = 4
	h := newHarness(cfg)

	result := &models.CheckoutResult{
		Payments: []models.RequiredPayment{{Destination: "EQGift", AmountNano: 1, Payload: ""}},
	}
	h.checkout.On("BuyPremiumGift", mock.Anything, "@friend", 6, 0).Return(result, nil).Once()
	h.sender.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okAttempt("EQGift", 1, "hash-g")).Once()
	h.feed.On("Event", mock.Anything, "hash-g").Return(notFoundEvent(), nil)

	outcome, err := h.engine.PurchaseGift(context.Background(), "@friend", 6, 0)
	require.NoError(t, err)

	assert.Equal(t, models.FAILED, outcome.Status)
	h.checkout.AssertNumberOfCalls(t, "BuyPremiumGift", 1)
	h.feed.AssertNumberOfCalls(t, "Event", 4)
}

func TestStarsMemo(t *testing.T) {
	t.Run("premium text passes through", func(t *testing.T) {
		text := "Telegram Premium gift"
		assert.Equal(t, text, starsMemo(text))
	})

	t.Run("non-base64 text passes through", func(t *testing.T) {
		text := "1 000 Telegram Stars"
		assert.Equal(t, text, starsMemo(text))
	})

	t.Run("cell payload is decoded", func(t *testing.T) {
		c := cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake("100 Telegram Stars ref#1").EndCell()
		encoded := base64.StdEncoding.EncodeToString(c.ToBOC())
		assert.Equal(t, "100 Telegram Stars ref#1", starsMemo(encoded))
	})

	t.Run("empty payload", func(t *testing.T) {
		assert.Equal(t, "", starsMemo(""))
	})
}
