// Package syncer pulls energy records from the solar panel service into
// storage.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/solarpanel"
	"github.com/sunledger/sunledger/pkg/storage"
	"github.com/sunledger/sunledger/pkg/types"
)

// Mode controls what Reconcile does with the records it fetches.
type Mode string

const (
	// ModePersist stores fetched records.
	ModePersist Mode = "persist"
	// ModeLog fetches and logs counts without writing anything.
	ModeLog Mode = "log"
	// ModeOff skips reconciliation entirely.
	ModeOff Mode = "off"
)

// ParseMode returns the Mode for s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePersist, ModeLog, ModeOff:
		return m, nil
	}
	return "", fmt.Errorf("unknown sync mode: %s", s)
}

// Syncer copies upstream records into the database.
type Syncer struct {
	db       storage.Database
	provider solarpanel.Provider
	mode     Mode
	now      func() time.Time
}

// New returns a Syncer using mode for Reconcile.
func New(db storage.Database, provider solarpanel.Provider, mode Mode) *Syncer {
	return &Syncer{
		db:       db,
		provider: provider,
		mode:     mode,
		now:      time.Now,
	}
}

// Configured returns a Syncer whose mode comes from flags.
func Configured(db storage.Database, provider solarpanel.Provider) *Syncer {
	s := New(db, provider, ModePersist)
	mode := lflag.String("sync-mode", string(ModePersist), "What to do with records fetched before listing energy records (available: persist, log, off)")

	lflag.Do(func() {
		m, err := ParseMode(*mode)
		if err != nil {
			panic(err.Error())
		}
		s.mode = m
	})

	return s
}

// Mode returns the configured reconcile mode.
func (s *Syncer) Mode() Mode {
	return s.mode
}

// Reconcile fetches everything newer than the latest stored record for the
// user's first solar unit. Without any stored record the full upstream
// history is fetched.
func (s *Syncer) Reconcile(ctx context.Context, userID string) error {
	if s.mode == ModeOff {
		return nil
	}

	units, err := s.db.ListSolarUnitsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list solar units: %w", err)
	}
	if len(units) == 0 {
		return storage.ErrSolarUnitNotFound
	}
	unit := units[0]
	ctx = log.WithAttrs(ctx, slog.String("solarUnitId", unit.ID))

	latest, err := s.db.GetLatestEnergyRecord(ctx, unit.ID)
	if err != nil {
		return fmt.Errorf("failed to get latest energy record: %w", err)
	}

	var records []types.EnergyRecord
	if latest == nil {
		records, err = s.provider.FetchAll(ctx, unit.ID)
	} else {
		records, err = s.provider.FetchFromTimestamp(ctx, unit.ID, latest.Timestamp)
	}
	if err != nil {
		return err
	}
	for i := range records {
		records[i].SolarUnitID = unit.ID
	}

	if s.mode == ModeLog || len(records) == 0 {
		log.Ctx(ctx).InfoContext(
			ctx,
			"reconciled energy records",
			slog.Int("fetched", len(records)),
			slog.Bool("persisted", false),
		)
		return nil
	}

	if err := s.db.InsertEnergyRecords(ctx, records); err != nil {
		return fmt.Errorf("failed to insert energy records: %w", err)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"reconciled energy records",
		slog.Int("fetched", len(records)),
		slog.Bool("persisted", true),
	)
	return nil
}

// Result summarizes a SyncFrom run.
type Result struct {
	TotalFetched  int       `json:"totalFetched"`
	SavedCount    int       `json:"savedCount"`
	SkippedCount  int       `json:"skippedCount"`
	FailedCount   int       `json:"failedCount"`
	FromTimestamp time.Time `json:"fromTimestamp"`
	SyncedAt      time.Time `json:"syncedAt"`
}

// SyncFrom fetches upstream records from the given time and stores the ones
// not already present, matching on timestamp and energy produced. A failure
// on one record is logged and counted but does not stop the run.
func (s *Syncer) SyncFrom(ctx context.Context, solarUnitID string, from time.Time) (Result, error) {
	if _, err := s.db.GetSolarUnit(ctx, solarUnitID); err != nil {
		return Result{}, err
	}
	ctx = log.WithAttrs(ctx, slog.String("solarUnitId", solarUnitID))

	records, err := s.provider.FetchFromTimestamp(ctx, solarUnitID, from)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		TotalFetched:  len(records),
		FromTimestamp: from.UTC(),
	}
	for _, rec := range records {
		rec.SolarUnitID = solarUnitID
		existing, err := s.db.FindEnergyRecord(ctx, solarUnitID, rec.Timestamp, rec.EnergyProduced)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to check for existing energy record", slog.Time("timestamp", rec.Timestamp), slog.Any("error", err))
			res.FailedCount++
			continue
		}
		if existing != nil {
			res.SkippedCount++
			continue
		}
		if rec.IntervalHours == 0 {
			rec.IntervalHours = types.DefaultIntervalHours
		}
		if _, err := s.db.CreateEnergyRecord(ctx, rec); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to save energy record", slog.Time("timestamp", rec.Timestamp), slog.Any("error", err))
			res.FailedCount++
			continue
		}
		res.SavedCount++
	}
	res.SyncedAt = s.now().UTC()

	log.Ctx(ctx).InfoContext(
		ctx,
		"energy records sync completed",
		slog.Int("fetched", res.TotalFetched),
		slog.Int("saved", res.SavedCount),
		slog.Int("skipped", res.SkippedCount),
		slog.Int("failed", res.FailedCount),
	)
	return res, nil
}
