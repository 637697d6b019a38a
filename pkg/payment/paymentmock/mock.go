package paymentmock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/sunledger/sunledger/pkg/payment"
)

type MockProcessor struct {
	mock.Mock
}

var _ payment.Processor = (*MockProcessor)(nil)

func (m *MockProcessor) CreateCheckoutSession(ctx context.Context, bookingID string) (string, error) {
	args := m.Called(ctx, bookingID)
	return args.String(0), args.Error(1)
}

func (m *MockProcessor) GetSessionStatus(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockProcessor) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(payment.Event), args.Error(1)
}

func (m *MockProcessor) Fulfill(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}
