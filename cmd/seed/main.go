package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/solarpanel"
	"github.com/sunledger/sunledger/pkg/storage"
	"github.com/sunledger/sunledger/pkg/types"
)

type demoUnit struct {
	serial   string
	userID   string
	capacity float64
	status   types.SolarUnitStatus
}

var demoUnits = []demoUnit{
	{serial: "SU-0001", userID: "dev-user", capacity: 5000, status: types.SolarUnitStatusActive},
	{serial: "SU-0002", userID: "demo-user", capacity: 7200, status: types.SolarUnitStatusMaintenance},
	{serial: "SU-0003", capacity: 3600, status: types.SolarUnitStatusUnassigned},
}

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	db := storage.Configured()
	history := lflag.Duration("seed-history", 30*24*time.Hour, "How much simulated history to generate for each assigned unit")
	lflag.Configure()

	ctx := context.Background()
	defer db.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo data")

	gen := solarpanel.NewSimulated(*history)
	installed := time.Now().UTC().Add(-*history).Truncate(24 * time.Hour)

	for _, d := range demoUnits {
		unit, err := db.CreateSolarUnit(ctx, types.SolarUnit{
			UserID:           d.userID,
			SerialNumber:     d.serial,
			InstallationDate: &installed,
			Capacity:         d.capacity,
			Status:           d.status,
		})
		if errors.Is(err, storage.ErrSerialNumberExists) {
			log.Ctx(ctx).InfoContext(ctx, "solar unit already seeded", slog.String("serialNumber", d.serial))
			continue
		}
		if err != nil {
			fatal(ctx, fmt.Errorf("failed to create solar unit %s: %w", d.serial, err))
		}
		ctx := log.WithAttrs(ctx, slog.String("solarUnitId", unit.ID))

		if !unit.Assigned() {
			log.Ctx(ctx).InfoContext(ctx, "created unassigned solar unit")
			continue
		}

		records, err := gen.FetchAll(ctx, unit.ID)
		if err != nil {
			fatal(ctx, err)
		}
		// scale the generated curve to the unit's rating
		for i := range records {
			records[i].EnergyProduced = records[i].EnergyProduced * d.capacity / 5000
		}
		if err := db.InsertEnergyRecords(ctx, records); err != nil {
			fatal(ctx, fmt.Errorf("failed to insert energy records: %w", err))
		}
		log.Ctx(ctx).InfoContext(ctx, "seeded solar unit", slog.Int("records", len(records)))
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding complete")
}

func fatal(ctx context.Context, err error) {
	log.Ctx(ctx).ErrorContext(ctx, "seeding failed", slog.Any("error", err))
	os.Exit(1)
}
