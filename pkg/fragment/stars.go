package fragment

import (
	"context"
	"net/url"
	"strconv"

	"github.com/parcrypto/starshop/pkg/models"
)

// BuyStars runs the stars checkout sequence for one purchase unit:
// state init, recipient search, price quote, purchase-request initiation
// and payment-link materialization. Early terminations (recipient or
// request id absent, link not ok) return the partial trace with no
// payments: no payment obligation exists, so there is nothing to settle.
func (s *Session) BuyStars(ctx context.Context, buyer string, quantity, hideSender int) (*models.CheckoutResult, error) {
	out := &models.CheckoutResult{}
	record := func(step string, raw map[string]any) {
		out.Trace = append(out.Trace, models.TraceEntry{Step: step, Response: sanitizeMap(raw)})
	}

	raw, err := s.call(ctx, url.Values{
		"mode":   {"new"},
		"lv":     {"false"},
		"dh":     {"1"},
		"method": {"updateStarsBuyState"},
	})
	if err != nil {
		return out, err
	}
	record("updateStarsBuyState", raw)

	search, err := s.call(ctx, url.Values{
		"query":    {buyer},
		"quantity": {itoa(quantity)},
		"method":   {"searchStarsRecipient"},
	})
	if err != nil {
		return out, err
	}
	record("searchStarsRecipient", search)

	found, ok := search["found"].(map[string]any)
	if !ok {
		return out, nil
	}

	prices, err := s.call(ctx, url.Values{
		"stars":    {""},
		"quantity": {itoa(quantity)},
		"method":   {"updateStarsPrices"},
	})
	if err != nil {
		return out, err
	}
	record("updateStarsPrices", prices)

	recipient, _ := found["recipient"].(string)
	buyResp, err := s.call(ctx, url.Values{
		"recipient": {recipient},
		"quantity":  {itoa(quantity)},
		"method":    {"initBuyStarsRequest"},
	})
	if err != nil {
		return out, err
	}
	record("initBuyStarsRequest", buyResp)

	reqID, _ := buyResp["req_id"].(string)
	if reqID == "" {
		return out, nil
	}
	out.RequestID = reqID

	account, device := devicePayload()
	link, err := s.call(ctx, url.Values{
		"account":     {account},
		"device":      {device},
		"transaction": {"1"},
		"id":          {reqID},
		"show_sender": {itoa(hideSender)},
		"method":      {"getBuyStarsLink"},
	})
	if err != nil {
		return out, err
	}
	record("getBuyStarsLink", link)

	out.Payments = extractPayments(link)
	return out, nil
}

// extractPayments pulls {address, amount, payload} triples out of a
// payment-link response's transaction descriptor. Amounts arrive as wire
// integers in nanoton; they stay in nanoton here and are rescaled at the
// transfer layer.
func extractPayments(link map[string]any) []models.RequiredPayment {
	if ok, _ := link["ok"].(bool); !ok {
		return nil
	}
	tx, ok := link["transaction"].(map[string]any)
	if !ok {
		return nil
	}
	messages, _ := tx["messages"].([]any)

	var payments []models.RequiredPayment
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		addr, _ := msg["address"].(string)
		pay, _ := msg["payload"].(string)
		payments = append(payments, models.RequiredPayment{
			Destination: addr,
			AmountNano:  amountNano(msg["amount"]),
			Payload:     pay,
		})
	}
	return payments
}

func amountNano(v any) int64 {
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int64(t)
	}
	return 0
}
