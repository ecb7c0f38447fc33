package marketplace

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parcrypto/starshop/pkg/models"
	"github.com/parcrypto/starshop/pkg/queue"
	"github.com/parcrypto/starshop/pkg/storage"
)

// Ledger statuses recorded for orders the watcher decided not to buy.
const (
	statusEnqueued         = "enqueued"
	statusUnparsed         = "unparsed"
	statusQuantityExceeded = "quantity_exceeded"
)

// WatcherConfig bounds the watcher's polling and order size.
type WatcherConfig struct {
	// PollInterval is how often the paid-orders feed is polled.
	PollInterval time.Duration
	// MaxQuantity is the largest stars total a single order may resolve to.
	// Larger orders are recorded and skipped, never partially filled.
	MaxQuantity int
}

func (c WatcherConfig) withDefaults() WatcherConfig {
	if c.PollInterval == 0 {
		c.PollInterval = time.Minute
	}
	if c.MaxQuantity == 0 {
		c.MaxQuantity = 10000
	}
	return c
}

// Watcher polls the storefront for paid orders and enqueues a purchase job
// for each new one. The in-memory seen set covers the window before a
// ledger write lands; the ledger covers restarts and concurrent watchers.
type Watcher struct {
	market Client
	ledger storage.OrderStore
	queue  queue.PurchaseQueue
	logger *slog.Logger
	cfg    WatcherConfig

	seen map[string]struct{}
}

// NewWatcher creates a watcher over the given storefront.
func NewWatcher(market Client, ledger storage.OrderStore, q queue.PurchaseQueue, logger *slog.Logger, cfg WatcherConfig) *Watcher {
	return &Watcher{
		market: market,
		ledger: ledger,
		queue:  q,
		logger: logger,
		cfg:    cfg.withDefaults(),
		seen:   make(map[string]struct{}),
	}
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce fetches the paid-orders feed and processes it oldest first.
func (w *Watcher) pollOnce(ctx context.Context) {
	orders, err := w.market.PaidOrders(ctx)
	if err != nil {
		w.logger.Error("failed to list paid orders", "error", err)
		return
	}

	// The feed is newest first; buyers who paid earlier go first.
	for i := len(orders) - 1; i >= 0; i-- {
		w.processOrder(ctx, orders[i])
	}
}

func (w *Watcher) processOrder(ctx context.Context, order Order) {
	if _, ok := w.seen[order.ID]; ok {
		return
	}

	processed, err := w.ledger.IsProcessed(ctx, order.ID)
	if err != nil {
		w.logger.Error("ledger lookup failed", "order_id", order.ID, "error", err)
		return
	}
	if processed {
		w.seen[order.ID] = struct{}{}
		return
	}
	w.seen[order.ID] = struct{}{}

	parsed, ok := ParseOrderDescription(order.Description)
	if !ok {
		w.logger.Warn("order description did not parse", "order_id", order.ID, "description", order.Description)
		w.mark(ctx, order, 0, statusUnparsed)
		return
	}

	quantity := parsed.Stars * parsed.Count
	if quantity > w.cfg.MaxQuantity {
		w.logger.Warn("order exceeds quantity limit", "order_id", order.ID, "quantity", quantity)
		w.mark(ctx, order, quantity, statusQuantityExceeded)
		return
	}

	// A missing chat only costs the buyer the confirmation message, not the
	// purchase itself.
	chatID, err := w.market.ChatIDByName(ctx, order.BuyerUsername)
	if err != nil {
		w.logger.Warn("failed to resolve buyer chat", "order_id", order.ID, "buyer", order.BuyerUsername, "error", err)
		chatID = ""
	}

	job := &models.PurchaseJob{
		ID:       uuid.NewString(),
		OrderID:  order.ID,
		ChatID:   chatID,
		Buyer:    parsed.Buyer,
		Quantity: quantity,
	}
	if err := w.queue.Enqueue(ctx, job); err != nil {
		w.logger.Error("failed to enqueue purchase job", "order_id", order.ID, "error", err)
		// Let the next poll retry the order.
		delete(w.seen, order.ID)
		return
	}

	w.logger.Info("purchase job enqueued", "order_id", order.ID, "buyer", parsed.Buyer, "quantity", quantity)
	w.mark(ctx, order, quantity, statusEnqueued)
}

func (w *Watcher) mark(ctx context.Context, order Order, quantity int, status string) {
	rec := &storage.ProcessedOrder{
		OrderID:  order.ID,
		Buyer:    order.BuyerUsername,
		Quantity: quantity,
		Status:   status,
	}
	if err := w.ledger.MarkProcessed(ctx, rec); err != nil {
		w.logger.Error("failed to record order in ledger", "order_id", order.ID, "error", err)
	}
}
