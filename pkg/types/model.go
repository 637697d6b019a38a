package types

import (
	"strings"
	"time"
)

const (
	// DefaultIntervalHours is used when a record does not specify how long it
	// was measured over.
	DefaultIntervalHours = 2.0

	MinIntervalHours = 0.1
	MaxIntervalHours = 24.0
)

// SolarUnitStatus is the lifecycle status of a solar unit.
type SolarUnitStatus string

const (
	SolarUnitStatusActive      SolarUnitStatus = "ACTIVE"
	SolarUnitStatusInactive    SolarUnitStatus = "INACTIVE"
	SolarUnitStatusMaintenance SolarUnitStatus = "MAINTENANCE"
	SolarUnitStatusFault       SolarUnitStatus = "FAULT"
	SolarUnitStatusUnassigned  SolarUnitStatus = "UNASSIGNED"
)

// SolarUnitStatuses lists every valid status in display order.
var SolarUnitStatuses = []SolarUnitStatus{
	SolarUnitStatusActive,
	SolarUnitStatusInactive,
	SolarUnitStatusMaintenance,
	SolarUnitStatusFault,
	SolarUnitStatusUnassigned,
}

// ParseSolarUnitStatus parses s case-insensitively. The bool is false when s
// is not one of SolarUnitStatuses.
func ParseSolarUnitStatus(s string) (SolarUnitStatus, bool) {
	upper := SolarUnitStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range SolarUnitStatuses {
		if st == upper {
			return st, true
		}
	}
	return "", false
}

// SolarUnit represents a physical installation with a capacity rating.
type SolarUnit struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId,omitempty"`
	SerialNumber     string          `json:"serialNumber"`
	InstallationDate *time.Time      `json:"installationDate,omitempty"`
	Capacity         float64         `json:"capacity"` // watts
	Status           SolarUnitStatus `json:"status"`
}

// Assigned returns true if the unit has an owning user.
func (u SolarUnit) Assigned() bool {
	return u.UserID != ""
}

// CheckAssignment returns a validation error unless the unit is UNASSIGNED
// exactly when it has no owning user.
func (u SolarUnit) CheckAssignment() error {
	switch {
	case u.Assigned() && u.Status == SolarUnitStatusUnassigned:
		return Errorf(ErrValidation, "A solar unit assigned to a user cannot have status UNASSIGNED")
	case !u.Assigned() && u.Status != SolarUnitStatusUnassigned:
		return Errorf(ErrValidation, "A solar unit without a user must have status UNASSIGNED")
	}
	return nil
}

// SolarUnitSummary is the subset of a unit embedded in record responses.
type SolarUnitSummary struct {
	ID           string          `json:"id"`
	SerialNumber string          `json:"serialNumber"`
	Capacity     float64         `json:"capacity"`
	Status       SolarUnitStatus `json:"status,omitempty"`
}

// Summary returns the summary of the unit.
func (u SolarUnit) Summary() *SolarUnitSummary {
	return &SolarUnitSummary{
		ID:           u.ID,
		SerialNumber: u.SerialNumber,
		Capacity:     u.Capacity,
		Status:       u.Status,
	}
}

// EnergyRecord is one measured production reading for a solar unit.
type EnergyRecord struct {
	ID             string    `json:"id"`
	SolarUnitID    string    `json:"solarUnitId"`
	Timestamp      time.Time `json:"timestamp"`
	EnergyProduced float64   `json:"energyProduced"`
	IntervalHours  float64   `json:"intervalHours"`
}

// EnergyTotals summarizes every record of a solar unit.
type EnergyTotals struct {
	SolarUnitID           string    `json:"solarUnitId"`
	TotalEnergyProduced   float64   `json:"totalEnergyProduced"`
	TotalRecords          int       `json:"totalRecords"`
	AverageEnergyProduced float64   `json:"averageEnergyProduced"`
	FirstRecord           time.Time `json:"firstRecord"`
	LastRecord            time.Time `json:"lastRecord"`
}

// User is the authenticated caller of a request.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Admin bool   `json:"-"`
}
