// Package mocks provides testify mocks for the purchase engine's
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/parcrypto/starshop/pkg/models"
	"github.com/parcrypto/starshop/pkg/tonindex"
)

// Checkout is a mock of the purchase.Checkout interface.
type Checkout struct {
	mock.Mock
}

func (m *Checkout) BuyStars(ctx context.Context, buyer string, quantity, hideSender int) (*models.CheckoutResult, error) {
	args := m.Called(ctx, buyer, quantity, hideSender)
	result, _ := args.Get(0).(*models.CheckoutResult)
	return result, args.Error(1)
}

func (m *Checkout) BuyPremiumGift(ctx context.Context, buyer string, months, hideSender int) (*models.CheckoutResult, error) {
	args := m.Called(ctx, buyer, months, hideSender)
	result, _ := args.Get(0).(*models.CheckoutResult)
	return result, args.Error(1)
}

// Sender is a mock of the purchase.Sender interface.
type Sender struct {
	mock.Mock
}

func (m *Sender) Transfer(ctx context.Context, destination string, amountNano int64, memo string) *models.TransferAttempt {
	args := m.Called(ctx, destination, amountNano, memo)
	attempt, _ := args.Get(0).(*models.TransferAttempt)
	return attempt
}

// EventFeed is a mock of the purchase.EventFeed interface.
type EventFeed struct {
	mock.Mock
}

func (m *EventFeed) Event(ctx context.Context, eventID string) (*tonindex.Event, error) {
	args := m.Called(ctx, eventID)
	ev, _ := args.Get(0).(*tonindex.Event)
	return ev, args.Error(1)
}
