package storage

import (
	"context"
	"time"

	"github.com/sunledger/sunledger/pkg/types"
)

var (
	ErrSolarUnitNotFound    = types.Errorf(types.ErrNotFound, "Solar unit not found")
	ErrEnergyRecordNotFound = types.Errorf(types.ErrNotFound, "Energy generation record not found")
	ErrNoEnergyRecords      = types.Errorf(types.ErrNotFound, "No energy generation records found for this solar unit")
	ErrSerialNumberExists   = types.Errorf(types.ErrValidation, "A solar unit with this serial number already exists")
)

var (
	_ Database = (*FirestoreProvider)(nil)
	_ Database = (*PostgresProvider)(nil)
)

// Database defines the interface for persisting solar units and their energy
// records.
type Database interface {
	// Solar units
	// CreateSolarUnit assigns an ID to unit and stores it. It returns
	// ErrSerialNumberExists if the serial number is already in use.
	CreateSolarUnit(ctx context.Context, unit types.SolarUnit) (types.SolarUnit, error)
	GetSolarUnit(ctx context.Context, id string) (types.SolarUnit, error)
	ListSolarUnits(ctx context.Context) ([]types.SolarUnit, error)
	ListSolarUnitsByUser(ctx context.Context, userID string) ([]types.SolarUnit, error)
	ListSolarUnitsByStatus(ctx context.Context, status types.SolarUnitStatus) ([]types.SolarUnit, error)
	// ListUnassignedSolarUnits returns units without a user or with the
	// UNASSIGNED status.
	ListUnassignedSolarUnits(ctx context.Context) ([]types.SolarUnit, error)
	// UpdateSolarUnit replaces the stored unit with the same ID.
	UpdateSolarUnit(ctx context.Context, unit types.SolarUnit) error
	DeleteSolarUnit(ctx context.Context, id string) error

	// Energy records
	// CreateEnergyRecord assigns an ID to rec and stores it.
	CreateEnergyRecord(ctx context.Context, rec types.EnergyRecord) (types.EnergyRecord, error)
	// InsertEnergyRecords stores records in bulk. Records that already carry
	// an ID overwrite any stored record with that ID.
	InsertEnergyRecords(ctx context.Context, records []types.EnergyRecord) error
	GetEnergyRecord(ctx context.Context, id string) (types.EnergyRecord, error)
	// ListEnergyRecordsByUnit returns one page of records, newest first, and
	// the total number of records for the unit.
	ListEnergyRecordsByUnit(ctx context.Context, solarUnitID string, page, limit int) ([]types.EnergyRecord, int, error)
	// ListEnergyRecordsByDateRange returns records at or after start, and at
	// or before end when end is set, newest first.
	ListEnergyRecordsByDateRange(ctx context.Context, solarUnitID string, start time.Time, end *time.Time) ([]types.EnergyRecord, error)
	UpdateEnergyRecord(ctx context.Context, rec types.EnergyRecord) error
	DeleteEnergyRecord(ctx context.Context, id string) error
	// GetLatestEnergyRecord returns nil if the unit has no records.
	GetLatestEnergyRecord(ctx context.Context, solarUnitID string) (*types.EnergyRecord, error)
	// FindEnergyRecord returns a record matching all of unit, timestamp and
	// energy, or nil.
	FindEnergyRecord(ctx context.Context, solarUnitID string, ts time.Time, energyProduced float64) (*types.EnergyRecord, error)
	// GetEnergyTotals returns ErrNoEnergyRecords if the unit has no records.
	GetEnergyTotals(ctx context.Context, solarUnitID string) (types.EnergyTotals, error)
	GetEnergyAnalytics(ctx context.Context, solarUnitID string, period types.AnalyticsPeriod) ([]types.AnalyticsBucket, error)

	// Lifecycle
	Close() error
}
