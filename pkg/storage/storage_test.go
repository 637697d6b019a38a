package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunledger/sunledger/pkg/types"
)

// testDatabase runs the same behavioural checks against any provider.
func testDatabase(t *testing.T, db Database) {
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())

	var unit types.SolarUnit

	t.Run("CreateSolarUnit", func(t *testing.T) {
		var err error
		unit, err = db.CreateSolarUnit(ctx, types.SolarUnit{
			SerialNumber: "SU-" + suffix,
			Capacity:     5000,
			Status:       types.SolarUnitStatusUnassigned,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, unit.ID)

		got, err := db.GetSolarUnit(ctx, unit.ID)
		require.NoError(t, err)
		assert.Equal(t, unit, got)
	})

	t.Run("DuplicateSerialNumber", func(t *testing.T) {
		_, err := db.CreateSolarUnit(ctx, types.SolarUnit{
			SerialNumber: "SU-" + suffix,
			Capacity:     100,
			Status:       types.SolarUnitStatusUnassigned,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrValidation))
	})

	t.Run("GetMissingSolarUnit", func(t *testing.T) {
		_, err := db.GetSolarUnit(ctx, "missing-"+suffix)
		assert.True(t, errors.Is(err, types.ErrNotFound))
	})

	t.Run("ListSolarUnits", func(t *testing.T) {
		units, err := db.ListSolarUnitsByStatus(ctx, types.SolarUnitStatusUnassigned)
		require.NoError(t, err)
		assert.Contains(t, units, unit)

		units, err = db.ListUnassignedSolarUnits(ctx)
		require.NoError(t, err)
		assert.Contains(t, units, unit)

		units, err = db.ListSolarUnits(ctx)
		require.NoError(t, err)
		assert.Contains(t, units, unit)
	})

	t.Run("UpdateSolarUnit", func(t *testing.T) {
		unit.UserID = "user-" + suffix
		unit.Status = types.SolarUnitStatusActive
		require.NoError(t, db.UpdateSolarUnit(ctx, unit))

		units, err := db.ListSolarUnitsByUser(ctx, "user-"+suffix)
		require.NoError(t, err)
		assert.Equal(t, []types.SolarUnit{unit}, units)

		units, err = db.ListUnassignedSolarUnits(ctx)
		require.NoError(t, err)
		assert.NotContains(t, units, unit)

		err = db.UpdateSolarUnit(ctx, types.SolarUnit{ID: "missing-" + suffix, SerialNumber: "x-" + suffix, Capacity: 1})
		assert.True(t, errors.Is(err, types.ErrNotFound))
	})

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var created types.EnergyRecord

	t.Run("EnergyRecords", func(t *testing.T) {
		latest, err := db.GetLatestEnergyRecord(ctx, unit.ID)
		require.NoError(t, err)
		assert.Nil(t, latest)

		_, err = db.GetEnergyTotals(ctx, unit.ID)
		assert.True(t, errors.Is(err, types.ErrNotFound))

		created, err = db.CreateEnergyRecord(ctx, types.EnergyRecord{
			SolarUnitID:    unit.ID,
			Timestamp:      base,
			EnergyProduced: 10,
			IntervalHours:  2,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)

		require.NoError(t, db.InsertEnergyRecords(ctx, []types.EnergyRecord{
			{SolarUnitID: unit.ID, Timestamp: base.Add(2 * time.Hour), EnergyProduced: 20, IntervalHours: 2},
			{ID: "upstream-" + suffix, SolarUnitID: unit.ID, Timestamp: base.Add(24 * time.Hour), EnergyProduced: 30, IntervalHours: 2},
		}))
		// re-inserting an upstream record overwrites it
		require.NoError(t, db.InsertEnergyRecords(ctx, []types.EnergyRecord{
			{ID: "upstream-" + suffix, SolarUnitID: unit.ID, Timestamp: base.Add(24 * time.Hour), EnergyProduced: 30, IntervalHours: 2},
		}))

		records, total, err := db.ListEnergyRecordsByUnit(ctx, unit.ID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, records, 2)
		assert.Equal(t, "upstream-"+suffix, records[0].ID)
		assert.Equal(t, 20.0, records[1].EnergyProduced)

		records, _, err = db.ListEnergyRecordsByUnit(ctx, unit.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, created.ID, records[0].ID)

		end := base.Add(3 * time.Hour)
		records, err = db.ListEnergyRecordsByDateRange(ctx, unit.ID, base.Add(time.Hour), &end)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 20.0, records[0].EnergyProduced)

		records, err = db.ListEnergyRecordsByDateRange(ctx, unit.ID, base.Add(time.Hour), nil)
		require.NoError(t, err)
		assert.Len(t, records, 2)

		latest, err = db.GetLatestEnergyRecord(ctx, unit.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "upstream-"+suffix, latest.ID)

		found, err := db.FindEnergyRecord(ctx, unit.ID, base, 10)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)

		found, err = db.FindEnergyRecord(ctx, unit.ID, base, 11)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Aggregations", func(t *testing.T) {
		totals, err := db.GetEnergyTotals(ctx, unit.ID)
		require.NoError(t, err)
		assert.Equal(t, 60.0, totals.TotalEnergyProduced)
		assert.Equal(t, 3, totals.TotalRecords)
		assert.Equal(t, 20.0, totals.AverageEnergyProduced)
		assert.True(t, totals.FirstRecord.Equal(base))
		assert.True(t, totals.LastRecord.Equal(base.Add(24*time.Hour)))

		buckets, err := db.GetEnergyAnalytics(ctx, unit.ID, types.AnalyticsPeriodDaily)
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, types.BucketKey{Year: 2025, Month: 1, Day: 2}, buckets[0].Bucket)
		assert.Equal(t, types.BucketKey{Year: 2025, Month: 1, Day: 1}, buckets[1].Bucket)
		assert.Equal(t, 30.0, buckets[1].TotalEnergyProduced)
		assert.Equal(t, 2, buckets[1].RecordCount)

		buckets, err = db.GetEnergyAnalytics(ctx, unit.ID, types.AnalyticsPeriodMonthly)
		require.NoError(t, err)
		require.Len(t, buckets, 1)
		assert.Equal(t, 3, buckets[0].RecordCount)
	})

	t.Run("UpdateAndDeleteEnergyRecord", func(t *testing.T) {
		created.EnergyProduced = 12
		require.NoError(t, db.UpdateEnergyRecord(ctx, created))
		got, err := db.GetEnergyRecord(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 12.0, got.EnergyProduced)

		require.NoError(t, db.DeleteEnergyRecord(ctx, created.ID))
		_, err = db.GetEnergyRecord(ctx, created.ID)
		assert.True(t, errors.Is(err, types.ErrNotFound))
		assert.True(t, errors.Is(db.DeleteEnergyRecord(ctx, created.ID), types.ErrNotFound))
	})

	t.Run("DeleteSolarUnit", func(t *testing.T) {
		require.NoError(t, db.DeleteSolarUnit(ctx, unit.ID))
		_, err := db.GetSolarUnit(ctx, unit.ID)
		assert.True(t, errors.Is(err, types.ErrNotFound))
		assert.True(t, errors.Is(db.DeleteSolarUnit(ctx, unit.ID), types.ErrNotFound))

		// records outlive their unit
		records, _, err := db.ListEnergyRecordsByUnit(ctx, unit.ID, 1, 10)
		require.NoError(t, err)
		assert.Len(t, records, 2)

		// the serial number is free again
		_, err = db.CreateSolarUnit(ctx, types.SolarUnit{SerialNumber: "SU-" + suffix, Capacity: 1, Status: types.SolarUnitStatusUnassigned})
		assert.NoError(t, err)
	})
}
