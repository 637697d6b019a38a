package schema

import (
	"io"
	"time"

	"github.com/sunledger/sunledger/pkg/types"
)

type createEnergyRecordBody struct {
	SolarUnitID    string   `json:"solarUnitId" validate:"required"`
	Timestamp      *string  `json:"timestamp" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EnergyProduced *float64 `json:"energyProduced" validate:"required,gte=0"`
	IntervalHours  *float64 `json:"intervalHours" validate:"omitempty,gte=0.1,lte=24"`
}

// CreateEnergyRecord parses the body of a create request. The timestamp
// defaults to now and the interval to types.DefaultIntervalHours.
func CreateEnergyRecord(r io.Reader, now time.Time) (types.EnergyRecord, error) {
	var body createEnergyRecordBody
	if err := decode(r, &body); err != nil {
		return types.EnergyRecord{}, err
	}
	// omitempty would let an explicit 0 through
	if body.IntervalHours != nil && *body.IntervalHours < types.MinIntervalHours {
		return types.EnergyRecord{}, types.Errorf(types.ErrValidation, "Interval must be at least 6 minutes")
	}
	if err := check(&body); err != nil {
		return types.EnergyRecord{}, err
	}
	ts, err := parseTime(body.Timestamp)
	if err != nil {
		return types.EnergyRecord{}, err
	}
	rec := types.EnergyRecord{
		SolarUnitID:    body.SolarUnitID,
		Timestamp:      now.UTC(),
		EnergyProduced: *body.EnergyProduced,
		IntervalHours:  types.DefaultIntervalHours,
	}
	if ts != nil {
		rec.Timestamp = *ts
	}
	if body.IntervalHours != nil {
		rec.IntervalHours = *body.IntervalHours
	}
	return rec, nil
}

type updateEnergyRecordBody struct {
	SolarUnitID    *string  `json:"solarUnitId"`
	Timestamp      *string  `json:"timestamp" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EnergyProduced *float64 `json:"energyProduced" validate:"omitempty,gte=0"`
	IntervalHours  *float64 `json:"intervalHours" validate:"omitempty,gte=0.1,lte=24"`
}

// EnergyRecordPatch holds the fields present in an update request.
type EnergyRecordPatch struct {
	SolarUnitID    *string
	Timestamp      *time.Time
	EnergyProduced *float64
	IntervalHours  *float64
}

// Apply copies the present fields onto rec.
func (p EnergyRecordPatch) Apply(rec *types.EnergyRecord) {
	if p.SolarUnitID != nil {
		rec.SolarUnitID = *p.SolarUnitID
	}
	if p.Timestamp != nil {
		rec.Timestamp = *p.Timestamp
	}
	if p.EnergyProduced != nil {
		rec.EnergyProduced = *p.EnergyProduced
	}
	if p.IntervalHours != nil {
		rec.IntervalHours = *p.IntervalHours
	}
}

// UpdateEnergyRecord parses the body of a partial update request.
func UpdateEnergyRecord(r io.Reader) (EnergyRecordPatch, error) {
	var body updateEnergyRecordBody
	if err := decode(r, &body); err != nil {
		return EnergyRecordPatch{}, err
	}
	if body.SolarUnitID != nil && *body.SolarUnitID == "" {
		return EnergyRecordPatch{}, types.Errorf(types.ErrValidation, "Solar unit ID is required")
	}
	if body.IntervalHours != nil && *body.IntervalHours < types.MinIntervalHours {
		return EnergyRecordPatch{}, types.Errorf(types.ErrValidation, "Interval must be at least 6 minutes")
	}
	if err := check(&body); err != nil {
		return EnergyRecordPatch{}, err
	}
	ts, err := parseTime(body.Timestamp)
	if err != nil {
		return EnergyRecordPatch{}, err
	}
	return EnergyRecordPatch{
		SolarUnitID:    body.SolarUnitID,
		Timestamp:      ts,
		EnergyProduced: body.EnergyProduced,
		IntervalHours:  body.IntervalHours,
	}, nil
}
