package server

import (
	"log/slog"
	"net/http"

	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/schema"
	"github.com/sunledger/sunledger/pkg/types"
)

type messageResponse struct {
	Message string `json:"message"`
}

type assignmentResponse struct {
	Message   string          `json:"message"`
	SolarUnit types.SolarUnit `json:"solarUnit"`
}

func writeSolarUnits(w http.ResponseWriter, units []types.SolarUnit) {
	if units == nil {
		units = []types.SolarUnit{}
	}
	writeJSON(w, http.StatusOK, units)
}

func (s *Server) handleListSolarUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.storage.ListSolarUnits(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSolarUnits(w, units)
}

func (s *Server) handleCreateSolarUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := schema.CreateSolarUnit(limitedBody(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unit, err = s.storage.CreateSolarUnit(r.Context(), unit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Ctx(r.Context()).InfoContext(r.Context(), "created solar unit", slog.String("solarUnitId", unit.ID), slog.String("serialNumber", unit.SerialNumber))
	writeJSON(w, http.StatusCreated, unit)
}

func (s *Server) handleGetSolarUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := s.storage.GetSolarUnit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (s *Server) handleUpdateSolarUnit(w http.ResponseWriter, r *http.Request) {
	patch, err := schema.UpdateSolarUnit(limitedBody(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unit, err := s.storage.GetSolarUnit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	patch.Apply(&unit)
	if err := unit.CheckAssignment(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.storage.UpdateSolarUnit(r.Context(), unit); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (s *Server) handleDeleteSolarUnit(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteSolarUnit(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Solar unit deleted successfully"})
}

func (s *Server) handleListSolarUnitsByUser(w http.ResponseWriter, r *http.Request) {
	units, err := s.storage.ListSolarUnitsByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSolarUnits(w, units)
}

func (s *Server) handleListSolarUnitsByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := schema.StatusParam(r.PathValue("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	units, err := s.storage.ListSolarUnitsByStatus(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSolarUnits(w, units)
}

func (s *Server) handleListUnassignedSolarUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.storage.ListUnassignedSolarUnits(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSolarUnits(w, units)
}

func (s *Server) handleUpdateSolarUnitStatus(w http.ResponseWriter, r *http.Request) {
	status, err := schema.UpdateStatus(limitedBody(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unit, err := s.storage.GetSolarUnit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unit.Status = status
	if err := unit.CheckAssignment(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.storage.UpdateSolarUnit(r.Context(), unit); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (s *Server) handleAssignSolarUnit(w http.ResponseWriter, r *http.Request) {
	assignment, err := schema.AssignUser(limitedBody(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unit, err := s.storage.GetSolarUnit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// reassigning to the same user only updates the status
	if unit.Assigned() && unit.UserID != assignment.UserID {
		writeError(w, r, types.Errorf(types.ErrValidation, "Solar unit is already assigned to another user"))
		return
	}
	unit.UserID = assignment.UserID
	unit.Status = assignment.Status
	if err := s.storage.UpdateSolarUnit(r.Context(), unit); err != nil {
		writeError(w, r, err)
		return
	}
	log.Ctx(r.Context()).InfoContext(r.Context(), "assigned solar unit", slog.String("solarUnitId", unit.ID), slog.String("userId", unit.UserID))
	writeJSON(w, http.StatusOK, assignmentResponse{
		Message:   "User assigned to solar unit successfully",
		SolarUnit: unit,
	})
}

func (s *Server) handleUnassignSolarUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := s.storage.GetSolarUnit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !unit.Assigned() {
		writeError(w, r, types.Errorf(types.ErrValidation, "Solar unit is not assigned to any user"))
		return
	}
	previous := unit.UserID
	unit.UserID = ""
	unit.Status = types.SolarUnitStatusUnassigned
	if err := s.storage.UpdateSolarUnit(r.Context(), unit); err != nil {
		writeError(w, r, err)
		return
	}
	log.Ctx(r.Context()).InfoContext(r.Context(), "unassigned solar unit", slog.String("solarUnitId", unit.ID), slog.String("userId", previous))
	writeJSON(w, http.StatusOK, assignmentResponse{
		Message:   "User unassigned from solar unit successfully",
		SolarUnit: unit,
	})
}
