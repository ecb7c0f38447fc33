package fragment

import (
	"context"
	"net/url"

	"github.com/parcrypto/starshop/pkg/models"
)

// BuyPremiumGift runs the gift-subscription checkout sequence. Tier
// selection is implicit in the months value; the caller validates the
// allowed set before any network call happens.
func (s *Session) BuyPremiumGift(ctx context.Context, buyer string, months, hideSender int) (*models.CheckoutResult, error) {
	out := &models.CheckoutResult{}
	record := func(step string, raw map[string]any) {
		out.Trace = append(out.Trace, models.TraceEntry{Step: step, Response: sanitizeMap(raw)})
	}

	raw, err := s.call(ctx, url.Values{
		"mode":   {"new"},
		"lv":     {"false"},
		"dh":     {"1"},
		"method": {"updatePremiumState"},
	})
	if err != nil {
		return out, err
	}
	record("updatePremiumState", raw)

	search, err := s.call(ctx, url.Values{
		"query":  {buyer},
		"method": {"searchPremiumGiftRecipient"},
	})
	if err != nil {
		return out, err
	}
	record("searchPremiumGiftRecipient", search)

	found, ok := search["found"].(map[string]any)
	if !ok {
		return out, nil
	}
	recipient, _ := found["recipient"].(string)
	if recipient == "" {
		return out, nil
	}

	initResp, err := s.call(ctx, url.Values{
		"recipient": {recipient},
		"months":    {itoa(months)},
		"method":    {"initGiftPremiumRequest"},
	})
	if err != nil {
		return out, err
	}
	record("initGiftPremiumRequest", initResp)

	reqID, _ := initResp["req_id"].(string)
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
		"method":      {"getGiftPremiumLink"},
	})
	if err != nil {
		return out, err
	}
	record("getGiftPremiumLink", link)

	out.Payments = extractPayments(link)
	return out, nil
}
