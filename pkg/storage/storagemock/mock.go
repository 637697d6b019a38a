package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/sunledger/sunledger/pkg/storage"
	"github.com/sunledger/sunledger/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) CreateSolarUnit(ctx context.Context, unit types.SolarUnit) (types.SolarUnit, error) {
	args := m.Called(ctx, unit)
	if len(args) > 0 {
		return args.Get(0).(types.SolarUnit), args.Error(1)
	}
	return unit, nil
}

func (m *MockDatabase) GetSolarUnit(ctx context.Context, id string) (types.SolarUnit, error) {
	args := m.Called(ctx, id)
	if len(args) > 0 {
		return args.Get(0).(types.SolarUnit), args.Error(1)
	}
	return types.SolarUnit{}, nil
}

func (m *MockDatabase) ListSolarUnits(ctx context.Context) ([]types.SolarUnit, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.SolarUnit), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) ListSolarUnitsByUser(ctx context.Context, userID string) ([]types.SolarUnit, error) {
	args := m.Called(ctx, userID)
	if len(args) > 0 {
		return args.Get(0).([]types.SolarUnit), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) ListSolarUnitsByStatus(ctx context.Context, status types.SolarUnitStatus) ([]types.SolarUnit, error) {
	args := m.Called(ctx, status)
	if len(args) > 0 {
		return args.Get(0).([]types.SolarUnit), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) ListUnassignedSolarUnits(ctx context.Context) ([]types.SolarUnit, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.SolarUnit), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpdateSolarUnit(ctx context.Context, unit types.SolarUnit) error {
	args := m.Called(ctx, unit)
	return args.Error(0)
}

func (m *MockDatabase) DeleteSolarUnit(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatabase) CreateEnergyRecord(ctx context.Context, rec types.EnergyRecord) (types.EnergyRecord, error) {
	args := m.Called(ctx, rec)
	if len(args) > 0 {
		return args.Get(0).(types.EnergyRecord), args.Error(1)
	}
	return rec, nil
}

func (m *MockDatabase) InsertEnergyRecords(ctx context.Context, records []types.EnergyRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockDatabase) GetEnergyRecord(ctx context.Context, id string) (types.EnergyRecord, error) {
	args := m.Called(ctx, id)
	if len(args) > 0 {
		return args.Get(0).(types.EnergyRecord), args.Error(1)
	}
	return types.EnergyRecord{}, nil
}

func (m *MockDatabase) ListEnergyRecordsByUnit(ctx context.Context, solarUnitID string, page, limit int) ([]types.EnergyRecord, int, error) {
	args := m.Called(ctx, solarUnitID, page, limit)
	if len(args) > 0 {
		return args.Get(0).([]types.EnergyRecord), args.Int(1), args.Error(2)
	}
	return nil, 0, nil
}

func (m *MockDatabase) ListEnergyRecordsByDateRange(ctx context.Context, solarUnitID string, start time.Time, end *time.Time) ([]types.EnergyRecord, error) {
	args := m.Called(ctx, solarUnitID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.EnergyRecord), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpdateEnergyRecord(ctx context.Context, rec types.EnergyRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockDatabase) DeleteEnergyRecord(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDatabase) GetLatestEnergyRecord(ctx context.Context, solarUnitID string) (*types.EnergyRecord, error) {
	args := m.Called(ctx, solarUnitID)
	if len(args) > 0 {
		rec, _ := args.Get(0).(*types.EnergyRecord)
		return rec, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) FindEnergyRecord(ctx context.Context, solarUnitID string, ts time.Time, energyProduced float64) (*types.EnergyRecord, error) {
	args := m.Called(ctx, solarUnitID, ts, energyProduced)
	if len(args) > 0 {
		rec, _ := args.Get(0).(*types.EnergyRecord)
		return rec, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetEnergyTotals(ctx context.Context, solarUnitID string) (types.EnergyTotals, error) {
	args := m.Called(ctx, solarUnitID)
	if len(args) > 0 {
		return args.Get(0).(types.EnergyTotals), args.Error(1)
	}
	return types.EnergyTotals{}, nil
}

func (m *MockDatabase) GetEnergyAnalytics(ctx context.Context, solarUnitID string, period types.AnalyticsPeriod) ([]types.AnalyticsBucket, error) {
	args := m.Called(ctx, solarUnitID, period)
	if len(args) > 0 {
		return args.Get(0).([]types.AnalyticsBucket), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
