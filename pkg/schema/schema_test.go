package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunledger/sunledger/pkg/types"
)

func assertValidation(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation), "expected validation error, got %v", err)
	if contains != "" {
		assert.Contains(t, err.Error(), contains)
	}
}

func TestCreateSolarUnit(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		u, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-1","capacity":5000}`))
		require.NoError(t, err)
		assert.Equal(t, "SU-1", u.SerialNumber)
		assert.Equal(t, 5000.0, u.Capacity)
		assert.Equal(t, types.SolarUnitStatusUnassigned, u.Status)
		assert.Empty(t, u.UserID)
		assert.Nil(t, u.InstallationDate)
	})

	t.Run("AllFields", func(t *testing.T) {
		u, err := CreateSolarUnit(strings.NewReader(`{
			"serialNumber":"SU-2",
			"capacity":1200.5,
			"status":"ACTIVE",
			"userId":"user-1",
			"installationDate":"2024-03-01T08:30:00.000Z"
		}`))
		require.NoError(t, err)
		assert.Equal(t, types.SolarUnitStatusActive, u.Status)
		assert.Equal(t, "user-1", u.UserID)
		require.NotNil(t, u.InstallationDate)
		assert.True(t, u.InstallationDate.Equal(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)))
	})

	t.Run("UserDefaultsToInactive", func(t *testing.T) {
		u, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-3","capacity":10,"userId":"user-1"}`))
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.UserID)
		assert.Equal(t, types.SolarUnitStatusInactive, u.Status)
	})

	t.Run("EmptyUserIsUnassigned", func(t *testing.T) {
		u, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-3","capacity":10,"userId":""}`))
		require.NoError(t, err)
		assert.Empty(t, u.UserID)
		assert.Equal(t, types.SolarUnitStatusUnassigned, u.Status)
	})

	t.Run("UserWithUnassignedStatus", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-3","capacity":10,"userId":"user-1","status":"UNASSIGNED"}`))
		assertValidation(t, err, "cannot have status UNASSIGNED")
	})

	t.Run("StatusWithoutUser", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-3","capacity":10,"status":"ACTIVE"}`))
		assertValidation(t, err, "must have status UNASSIGNED")
	})

	t.Run("ZeroCapacity", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-1","capacity":0}`))
		assertValidation(t, err, "Capacity must be a positive number")
	})

	t.Run("MissingCapacity", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-1"}`))
		assertValidation(t, err, "Capacity is required")
	})

	t.Run("EmptySerial", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"","capacity":10}`))
		assertValidation(t, err, "Serial number is required")
	})

	t.Run("BadStatus", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-1","capacity":10,"status":"BROKEN"}`))
		assertValidation(t, err, "status must be one of: ACTIVE, INACTIVE")
	})

	t.Run("BadDate", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":"SU-1","capacity":10,"installationDate":"yesterday"}`))
		assertValidation(t, err, "installationDate")
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(`{"serialNumber":`))
		assertValidation(t, err, "Invalid JSON body")
	})

	t.Run("EmptyBody", func(t *testing.T) {
		_, err := CreateSolarUnit(strings.NewReader(``))
		assertValidation(t, err, "Request body is required")
	})
}

func TestUpdateSolarUnit(t *testing.T) {
	t.Run("Partial", func(t *testing.T) {
		patch, err := UpdateSolarUnit(strings.NewReader(`{"capacity":3000}`))
		require.NoError(t, err)

		u := types.SolarUnit{SerialNumber: "SU-1", Capacity: 100, Status: types.SolarUnitStatusFault}
		patch.Apply(&u)
		assert.Equal(t, 3000.0, u.Capacity)
		assert.Equal(t, "SU-1", u.SerialNumber)
		assert.Equal(t, types.SolarUnitStatusFault, u.Status)
	})

	t.Run("Empty", func(t *testing.T) {
		patch, err := UpdateSolarUnit(strings.NewReader(`{}`))
		require.NoError(t, err)
		u := types.SolarUnit{SerialNumber: "SU-1", Capacity: 100}
		patch.Apply(&u)
		assert.Equal(t, types.SolarUnit{SerialNumber: "SU-1", Capacity: 100}, u)
	})

	t.Run("ClearingUserUnassigns", func(t *testing.T) {
		patch, err := UpdateSolarUnit(strings.NewReader(`{"userId":""}`))
		require.NoError(t, err)
		u := types.SolarUnit{UserID: "user-1", Status: types.SolarUnitStatusActive}
		patch.Apply(&u)
		assert.Empty(t, u.UserID)
		assert.Equal(t, types.SolarUnitStatusUnassigned, u.Status)
		assert.NoError(t, u.CheckAssignment())
	})

	t.Run("SettingUserActivates", func(t *testing.T) {
		patch, err := UpdateSolarUnit(strings.NewReader(`{"userId":"user-2"}`))
		require.NoError(t, err)
		u := types.SolarUnit{Status: types.SolarUnitStatusUnassigned}
		patch.Apply(&u)
		assert.Equal(t, "user-2", u.UserID)
		assert.Equal(t, types.SolarUnitStatusInactive, u.Status)
	})

	t.Run("ChangingUserKeepsStatus", func(t *testing.T) {
		patch, err := UpdateSolarUnit(strings.NewReader(`{"userId":"user-2"}`))
		require.NoError(t, err)
		u := types.SolarUnit{UserID: "user-1", Status: types.SolarUnitStatusFault}
		patch.Apply(&u)
		assert.Equal(t, types.SolarUnitStatusFault, u.Status)
	})

	t.Run("ExplicitStatusWins", func(t *testing.T) {
		patch, err := UpdateSolarUnit(strings.NewReader(`{"userId":"","status":"ACTIVE"}`))
		require.NoError(t, err)
		u := types.SolarUnit{UserID: "user-1", Status: types.SolarUnitStatusInactive}
		patch.Apply(&u)
		assert.Equal(t, types.SolarUnitStatusActive, u.Status)
		assert.Error(t, u.CheckAssignment())
	})

	t.Run("NegativeCapacity", func(t *testing.T) {
		_, err := UpdateSolarUnit(strings.NewReader(`{"capacity":-1}`))
		assertValidation(t, err, "Capacity must be a positive number")
	})

	t.Run("EmptySerial", func(t *testing.T) {
		_, err := UpdateSolarUnit(strings.NewReader(`{"serialNumber":""}`))
		assertValidation(t, err, "Serial number is required")
	})
}

func TestAssignUser(t *testing.T) {
	t.Run("DefaultStatus", func(t *testing.T) {
		a, err := AssignUser(strings.NewReader(`{"userId":"u1"}`))
		require.NoError(t, err)
		assert.Equal(t, "u1", a.UserID)
		assert.Equal(t, types.SolarUnitStatusInactive, a.Status)
	})

	t.Run("ExplicitStatus", func(t *testing.T) {
		a, err := AssignUser(strings.NewReader(`{"userId":"u1","status":"ACTIVE"}`))
		require.NoError(t, err)
		assert.Equal(t, types.SolarUnitStatusActive, a.Status)
	})

	t.Run("UnassignedStatus", func(t *testing.T) {
		_, err := AssignUser(strings.NewReader(`{"userId":"u1","status":"UNASSIGNED"}`))
		assertValidation(t, err, "cannot have status UNASSIGNED")
	})

	t.Run("MissingUser", func(t *testing.T) {
		_, err := AssignUser(strings.NewReader(`{"userId":""}`))
		assertValidation(t, err, "User ID is required")
	})
}

func TestUpdateStatus(t *testing.T) {
	st, err := UpdateStatus(strings.NewReader(`{"status":"MAINTENANCE"}`))
	require.NoError(t, err)
	assert.Equal(t, types.SolarUnitStatusMaintenance, st)

	_, err = UpdateStatus(strings.NewReader(`{"status":"maintenance"}`))
	assertValidation(t, err, "status must be one of")

	_, err = UpdateStatus(strings.NewReader(`{}`))
	assertValidation(t, err, "status is required")
}

func TestStatusParam(t *testing.T) {
	st, err := StatusParam("active")
	require.NoError(t, err)
	assert.Equal(t, types.SolarUnitStatusActive, st)

	st, err = StatusParam("Fault")
	require.NoError(t, err)
	assert.Equal(t, types.SolarUnitStatusFault, st)

	_, err = StatusParam("sleeping")
	assertValidation(t, err, "Invalid status. Must be one of: ACTIVE, INACTIVE, MAINTENANCE, FAULT, UNASSIGNED")
}

func TestCreateEnergyRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Defaults", func(t *testing.T) {
		rec, err := CreateEnergyRecord(strings.NewReader(`{"solarUnitId":"unit-1","energyProduced":0}`), now)
		require.NoError(t, err)
		assert.Equal(t, "unit-1", rec.SolarUnitID)
		assert.Equal(t, 0.0, rec.EnergyProduced)
		assert.Equal(t, 2.0, rec.IntervalHours)
		assert.True(t, rec.Timestamp.Equal(now))
	})

	t.Run("Explicit", func(t *testing.T) {
		rec, err := CreateEnergyRecord(strings.NewReader(`{"solarUnitId":"unit-1","energyProduced":12.5,"intervalHours":0.5,"timestamp":"2025-05-01T10:00:00Z"}`), now)
		require.NoError(t, err)
		assert.Equal(t, 0.5, rec.IntervalHours)
		assert.True(t, rec.Timestamp.Equal(time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("IntervalBounds", func(t *testing.T) {
		for _, tc := range []struct {
			body string
			ok   bool
			msg  string
		}{
			{`{"solarUnitId":"u","energyProduced":1,"intervalHours":0.1}`, true, ""},
			{`{"solarUnitId":"u","energyProduced":1,"intervalHours":24}`, true, ""},
			{`{"solarUnitId":"u","energyProduced":1,"intervalHours":0.05}`, false, "Interval must be at least 6 minutes"},
			{`{"solarUnitId":"u","energyProduced":1,"intervalHours":0}`, false, "Interval must be at least 6 minutes"},
			{`{"solarUnitId":"u","energyProduced":1,"intervalHours":24.5}`, false, "Interval cannot exceed 24 hours"},
		} {
			_, err := CreateEnergyRecord(strings.NewReader(tc.body), now)
			if tc.ok {
				assert.NoError(t, err, tc.body)
			} else {
				assertValidation(t, err, tc.msg)
			}
		}
	})

	t.Run("NegativeEnergy", func(t *testing.T) {
		_, err := CreateEnergyRecord(strings.NewReader(`{"solarUnitId":"u","energyProduced":-0.1}`), now)
		assertValidation(t, err, "Energy produced cannot be negative")
	})

	t.Run("MissingEnergy", func(t *testing.T) {
		_, err := CreateEnergyRecord(strings.NewReader(`{"solarUnitId":"u"}`), now)
		assertValidation(t, err, "Energy produced is required")
	})

	t.Run("MissingUnit", func(t *testing.T) {
		_, err := CreateEnergyRecord(strings.NewReader(`{"energyProduced":1}`), now)
		assertValidation(t, err, "Solar unit ID is required")
	})
}

func TestUpdateEnergyRecord(t *testing.T) {
	patch, err := UpdateEnergyRecord(strings.NewReader(`{"energyProduced":7}`))
	require.NoError(t, err)
	rec := types.EnergyRecord{SolarUnitID: "u", EnergyProduced: 1, IntervalHours: 2}
	patch.Apply(&rec)
	assert.Equal(t, types.EnergyRecord{SolarUnitID: "u", EnergyProduced: 7, IntervalHours: 2}, rec)

	_, err = UpdateEnergyRecord(strings.NewReader(`{"intervalHours":25}`))
	assertValidation(t, err, "Interval cannot exceed 24 hours")

	_, err = UpdateEnergyRecord(strings.NewReader(`{"solarUnitId":""}`))
	assertValidation(t, err, "Solar unit ID is required")
}

func TestPagination(t *testing.T) {
	page, limit, err := Pagination("", "")
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, limit)

	page, limit, err = Pagination("3", "100")
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, limit)

	_, _, err = Pagination("0", "10")
	assertValidation(t, err, "page must be at least 1")

	_, _, err = Pagination("1", "101")
	assertValidation(t, err, "limit must be at most 100")

	_, _, err = Pagination("abc", "")
	assertValidation(t, err, "page must be a number")

	_, _, err = Pagination("922337203685477581", "100")
	assertValidation(t, err, "page is too large")

	_, _, err = Pagination("21474838", "100")
	assertValidation(t, err, "page is too large")

	page, limit, err = Pagination("21474837", "100")
	require.NoError(t, err)
	assert.Equal(t, 21474837, page)
	assert.Equal(t, 100, limit)
}

func TestDateRange(t *testing.T) {
	start, end, err := DateRange("2025-01-01T00:00:00Z", "2025-01-31T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, end)
	assert.True(t, end.Equal(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))

	_, end, err = DateRange("2025-01-01T00:00:00Z", "")
	require.NoError(t, err)
	assert.Nil(t, end)

	_, _, err = DateRange("", "")
	assertValidation(t, err, "Start date is required")

	_, _, err = DateRange("2025-01-01", "")
	assertValidation(t, err, "startDate must be an ISO-8601 datetime")

	_, _, err = DateRange("2025-02-01T00:00:00Z", "2025-01-01T00:00:00Z")
	assertValidation(t, err, "endDate must not be before startDate")
}

func TestPeriod(t *testing.T) {
	p, err := Period("")
	require.NoError(t, err)
	assert.Equal(t, types.AnalyticsPeriodDaily, p)

	p, err = Period("weekly")
	require.NoError(t, err)
	assert.Equal(t, types.AnalyticsPeriodWeekly, p)

	_, err = Period("yearly")
	assertValidation(t, err, "Invalid period")
}

func TestManualSync(t *testing.T) {
	raw, err := ManualSync(strings.NewReader(`{"fromTimestamp":"2025-01-01"}`))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", raw)

	_, err = ManualSync(strings.NewReader(`{}`))
	assertValidation(t, err, "fromTimestamp is required")
}

func TestTimestamp(t *testing.T) {
	for in, want := range map[string]time.Time{
		"2025-01-02T03:04:05Z":        time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"2025-01-02T03:04:05.5+01:00": time.Date(2025, 1, 2, 2, 4, 5, 500000000, time.UTC),
		"2025-01-02T03:04:05":         time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"2025-01-02":                  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	} {
		got, err := Timestamp(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), "%s: got %s", in, got)
	}

	_, err := Timestamp("not a date")
	assertValidation(t, err, "Invalid timestamp format")
}
