package schema

import (
	"io"
	"strings"
	"time"

	"github.com/sunledger/sunledger/pkg/types"
)

type createSolarUnitBody struct {
	UserID           *string  `json:"userId"`
	SerialNumber     string   `json:"serialNumber" validate:"required"`
	InstallationDate *string  `json:"installationDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Capacity         *float64 `json:"capacity" validate:"required,gt=0"`
	Status           *string  `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE MAINTENANCE FAULT UNASSIGNED"`
}

// CreateSolarUnit parses the body of a create request. Status defaults to
// UNASSIGNED, or INACTIVE when a user is given.
func CreateSolarUnit(r io.Reader) (types.SolarUnit, error) {
	var body createSolarUnitBody
	if err := decode(r, &body); err != nil {
		return types.SolarUnit{}, err
	}
	if err := check(&body); err != nil {
		return types.SolarUnit{}, err
	}
	installed, err := parseTime(body.InstallationDate)
	if err != nil {
		return types.SolarUnit{}, err
	}
	unit := types.SolarUnit{
		SerialNumber:     body.SerialNumber,
		InstallationDate: installed,
		Capacity:         *body.Capacity,
		Status:           types.SolarUnitStatusUnassigned,
	}
	if body.UserID != nil && *body.UserID != "" {
		unit.UserID = *body.UserID
		unit.Status = types.SolarUnitStatusInactive
	}
	if body.Status != nil {
		unit.Status = types.SolarUnitStatus(*body.Status)
	}
	if err := unit.CheckAssignment(); err != nil {
		return types.SolarUnit{}, err
	}
	return unit, nil
}

type updateSolarUnitBody struct {
	UserID           *string  `json:"userId"`
	SerialNumber     *string  `json:"serialNumber" validate:"omitempty,min=1"`
	InstallationDate *string  `json:"installationDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Capacity         *float64 `json:"capacity" validate:"omitempty,gt=0"`
	Status           *string  `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE MAINTENANCE FAULT UNASSIGNED"`
}

// SolarUnitPatch holds the fields present in an update request. Nil fields
// are left untouched by Apply.
type SolarUnitPatch struct {
	UserID           *string
	SerialNumber     *string
	InstallationDate *time.Time
	Capacity         *float64
	Status           *types.SolarUnitStatus
}

// Apply copies the present fields onto u. When the patch changes the user
// without a status, the status follows: clearing the user makes the unit
// UNASSIGNED and giving an unassigned unit a user makes it INACTIVE.
func (p SolarUnitPatch) Apply(u *types.SolarUnit) {
	if p.UserID != nil {
		u.UserID = *p.UserID
		if p.Status == nil {
			switch {
			case !u.Assigned():
				u.Status = types.SolarUnitStatusUnassigned
			case u.Status == types.SolarUnitStatusUnassigned:
				u.Status = types.SolarUnitStatusInactive
			}
		}
	}
	if p.SerialNumber != nil {
		u.SerialNumber = *p.SerialNumber
	}
	if p.InstallationDate != nil {
		u.InstallationDate = p.InstallationDate
	}
	if p.Capacity != nil {
		u.Capacity = *p.Capacity
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
}

// UpdateSolarUnit parses the body of a partial update request.
func UpdateSolarUnit(r io.Reader) (SolarUnitPatch, error) {
	var body updateSolarUnitBody
	if err := decode(r, &body); err != nil {
		return SolarUnitPatch{}, err
	}
	if body.SerialNumber != nil && *body.SerialNumber == "" {
		return SolarUnitPatch{}, types.Errorf(types.ErrValidation, "Serial number is required")
	}
	if err := check(&body); err != nil {
		return SolarUnitPatch{}, err
	}
	installed, err := parseTime(body.InstallationDate)
	if err != nil {
		return SolarUnitPatch{}, err
	}
	patch := SolarUnitPatch{
		UserID:           body.UserID,
		SerialNumber:     body.SerialNumber,
		InstallationDate: installed,
		Capacity:         body.Capacity,
	}
	if body.Status != nil {
		st := types.SolarUnitStatus(*body.Status)
		patch.Status = &st
	}
	return patch, nil
}

type assignUserBody struct {
	UserID string  `json:"userId" validate:"required"`
	Status *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE MAINTENANCE FAULT UNASSIGNED"`
}

// Assignment is a parsed assign-user request.
type Assignment struct {
	UserID string
	// Status is the status to set, INACTIVE when the request omits it.
	Status types.SolarUnitStatus
}

// AssignUser parses the body of an assign request.
func AssignUser(r io.Reader) (Assignment, error) {
	var body assignUserBody
	if err := decode(r, &body); err != nil {
		return Assignment{}, err
	}
	if err := check(&body); err != nil {
		return Assignment{}, err
	}
	a := Assignment{
		UserID: body.UserID,
		Status: types.SolarUnitStatusInactive,
	}
	if body.Status != nil {
		a.Status = types.SolarUnitStatus(*body.Status)
	}
	if a.Status == types.SolarUnitStatusUnassigned {
		return Assignment{}, types.Errorf(types.ErrValidation, "A solar unit assigned to a user cannot have status UNASSIGNED")
	}
	return a, nil
}

type updateStatusBody struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE MAINTENANCE FAULT UNASSIGNED"`
}

// UpdateStatus parses the body of a status change request.
func UpdateStatus(r io.Reader) (types.SolarUnitStatus, error) {
	var body updateStatusBody
	if err := decode(r, &body); err != nil {
		return "", err
	}
	if err := check(&body); err != nil {
		return "", err
	}
	return types.SolarUnitStatus(body.Status), nil
}

// StatusParam parses a status taken from the URL path. Matching is
// case-insensitive.
func StatusParam(s string) (types.SolarUnitStatus, error) {
	st, ok := types.ParseSolarUnitStatus(s)
	if !ok {
		names := make([]string, len(types.SolarUnitStatuses))
		for i, st := range types.SolarUnitStatuses {
			names[i] = string(st)
		}
		return "", types.Errorf(types.ErrValidation, "Invalid status. Must be one of: %s", strings.Join(names, ", "))
	}
	return st, nil
}
