package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/schema"
	"github.com/sunledger/sunledger/pkg/storage"
	"github.com/sunledger/sunledger/pkg/syncer"
	"github.com/sunledger/sunledger/pkg/types"
)

// energyRecordResponse is a record with a summary of its solar unit. The
// unit is omitted when it no longer exists.
type energyRecordResponse struct {
	types.EnergyRecord
	SolarUnit *types.SolarUnitSummary `json:"solarUnit,omitempty"`
}

type paginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type energyRecordsPage struct {
	Records    []energyRecordResponse `json:"records"`
	Pagination paginationResponse     `json:"pagination"`
}

type analyticsResponse struct {
	Period    types.AnalyticsPeriod   `json:"period"`
	Analytics []types.AnalyticsBucket `json:"analytics"`
}

type syncResponse struct {
	Message string `json:"message"`
	syncer.Result
}

// withUnits attaches unit summaries to records, reading each unit once.
func (s *Server) withUnits(ctx context.Context, records []types.EnergyRecord) ([]energyRecordResponse, error) {
	units := map[string]*types.SolarUnitSummary{}
	out := make([]energyRecordResponse, len(records))
	for i, rec := range records {
		summary, ok := units[rec.SolarUnitID]
		if !ok {
			unit, err := s.storage.GetSolarUnit(ctx, rec.SolarUnitID)
			if err == nil {
				summary = unit.Summary()
			} else if !errors.Is(err, types.ErrNotFound) {
				return nil, err
			}
			units[rec.SolarUnitID] = summary
		}
		out[i] = energyRecordResponse{EnergyRecord: rec, SolarUnit: summary}
	}
	return out, nil
}

func (s *Server) writeEnergyRecord(w http.ResponseWriter, r *http.Request, code int, rec types.EnergyRecord) {
	out, err := s.withUnits(r.Context(), []types.EnergyRecord{rec})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, code, out[0])
}

// reconcile pulls new upstream records for the caller's solar unit before
// the handler reads from storage. A query rejected by validate is answered
// without contacting upstream.
func (s *Server) reconcile(validate func(url.Values) error, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validate(r.URL.Query()); err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.syncer.Reconcile(r.Context(), s.getUser(r).ID); err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r)
	})
}

func validPage(q url.Values) error {
	_, _, err := schema.Pagination(q.Get("page"), q.Get("limit"))
	return err
}

func validDateRange(q url.Values) error {
	_, _, err := schema.DateRange(q.Get("startDate"), q.Get("endDate"))
	return err
}

func (s *Server) handleCreateEnergyRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := schema.CreateEnergyRecord(limitedBody(w, r), time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.storage.GetSolarUnit(r.Context(), rec.SolarUnitID); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err = s.storage.CreateEnergyRecord(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetEnergyRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.storage.GetEnergyRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeEnergyRecord(w, r, http.StatusOK, rec)
}

func (s *Server) handleUpdateEnergyRecord(w http.ResponseWriter, r *http.Request) {
	patch, err := schema.UpdateEnergyRecord(limitedBody(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.storage.GetEnergyRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	patch.Apply(&rec)
	if err := s.storage.UpdateEnergyRecord(r.Context(), rec); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeEnergyRecord(w, r, http.StatusOK, rec)
}

func (s *Server) handleDeleteEnergyRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteEnergyRecord(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Energy generation record deleted successfully"})
}

func (s *Server) handleListEnergyRecords(w http.ResponseWriter, r *http.Request) {
	page, limit, err := schema.Pagination(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, total, err := s.storage.ListEnergyRecordsByUnit(r.Context(), r.PathValue("solarUnitId"), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.withUnits(r.Context(), records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, energyRecordsPage{
		Records: out,
		Pagination: paginationResponse{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	})
}

func (s *Server) handleEnergyRecordsByDateRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := schema.DateRange(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unitID := r.PathValue("solarUnitId")
	if _, err := s.storage.GetSolarUnit(r.Context(), unitID); err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.storage.ListEnergyRecordsByDateRange(r.Context(), unitID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.withUnits(r.Context(), records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatestEnergyRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.storage.GetLatestEnergyRecord(r.Context(), r.PathValue("solarUnitId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, r, storage.ErrNoEnergyRecords)
		return
	}
	s.writeEnergyRecord(w, r, http.StatusOK, *rec)
}

func (s *Server) handleEnergyTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.storage.GetEnergyTotals(r.Context(), r.PathValue("solarUnitId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleEnergyAnalytics(w http.ResponseWriter, r *http.Request) {
	period, err := schema.Period(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	buckets, err := s.storage.GetEnergyAnalytics(r.Context(), r.PathValue("solarUnitId"), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if buckets == nil {
		buckets = []types.AnalyticsBucket{}
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		Period:    period,
		Analytics: buckets,
	})
}

func (s *Server) handleSyncEnergyRecords(w http.ResponseWriter, r *http.Request) {
	raw, err := schema.ManualSync(limitedBody(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unitID := r.PathValue("solarUnitId")
	if _, err := s.storage.GetSolarUnit(r.Context(), unitID); err != nil {
		writeError(w, r, err)
		return
	}
	from, err := schema.Timestamp(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.syncer.SyncFrom(r.Context(), unitID, from)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Ctx(r.Context()).InfoContext(r.Context(), "manual sync finished", slog.String("solarUnitId", unitID), slog.Int("saved", res.SavedCount))
	writeJSON(w, http.StatusOK, syncResponse{
		Message: "Energy records sync completed",
		Result:  res,
	})
}
