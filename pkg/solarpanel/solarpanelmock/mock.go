package solarpanelmock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/sunledger/sunledger/pkg/solarpanel"
	"github.com/sunledger/sunledger/pkg/types"
)

type MockProvider struct {
	mock.Mock
}

var _ solarpanel.Provider = (*MockProvider)(nil)

func (m *MockProvider) FetchAll(ctx context.Context, solarUnitID string) ([]types.EnergyRecord, error) {
	args := m.Called(ctx, solarUnitID)
	records, _ := args.Get(0).([]types.EnergyRecord)
	return records, args.Error(1)
}

func (m *MockProvider) FetchFromTimestamp(ctx context.Context, solarUnitID string, since time.Time) ([]types.EnergyRecord, error) {
	args := m.Called(ctx, solarUnitID, since)
	records, _ := args.Get(0).([]types.EnergyRecord)
	return records, args.Error(1)
}
