package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/levenlabs/go-lflag"
	"github.com/sunledger/sunledger/pkg/analytics"
	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	solarUnitsCollection    = "solar_units"
	energyRecordsCollection = "energy_records"
	serialNumbersCollection = "serial_numbers"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Units and records are stored as JSON blobs next to the fields
// that queries filter and order on.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// the project ID can be detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// unmarshalDoc decodes the "json" field of doc into v.
func unmarshalDoc(ctx context.Context, doc *firestore.DocumentSnapshot, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal document json", slog.String("id", doc.Ref.ID), slog.Any("error", err))
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// serialDocID returns the guard document ID for a serial number. Serial
// numbers may contain characters that are not allowed in document IDs.
func serialDocID(serialNumber string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(serialNumber))
}

func solarUnitDoc(unit types.SolarUnit) (map[string]interface{}, error) {
	jsonBytes, err := json.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal solar unit: %w", err)
	}
	// userId is always written so unassigned units match an equality filter
	return map[string]interface{}{
		"json":         string(jsonBytes),
		"userId":       unit.UserID,
		"status":       string(unit.Status),
		"serialNumber": unit.SerialNumber,
	}, nil
}

func (f *FirestoreProvider) collectSolarUnits(ctx context.Context, iter *firestore.DocumentIterator) ([]types.SolarUnit, error) {
	defer iter.Stop()

	units := []types.SolarUnit{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating solar units: %w", err)
		}
		var unit types.SolarUnit
		if err := unmarshalDoc(ctx, doc, &unit); err != nil {
			return nil, err
		}
		unit.ID = doc.Ref.ID
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].SerialNumber < units[j].SerialNumber
	})
	return units, nil
}

// CreateSolarUnit stores a new unit and its serial number guard in one
// transaction.
func (f *FirestoreProvider) CreateSolarUnit(ctx context.Context, unit types.SolarUnit) (types.SolarUnit, error) {
	ref := f.client.Collection(solarUnitsCollection).NewDoc()
	unit.ID = ref.ID
	data, err := solarUnitDoc(unit)
	if err != nil {
		return types.SolarUnit{}, err
	}
	guard := f.client.Collection(serialNumbersCollection).Doc(serialDocID(unit.SerialNumber))

	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := checkSerialFree(tx, guard); err != nil {
			return err
		}
		if err := tx.Create(guard, map[string]interface{}{"solarUnitId": unit.ID}); err != nil {
			return err
		}
		return tx.Create(ref, data)
	})
	if err != nil {
		if errors.Is(err, ErrSerialNumberExists) {
			return types.SolarUnit{}, err
		}
		return types.SolarUnit{}, fmt.Errorf("failed to create solar unit: %w", err)
	}
	return unit, nil
}

func checkSerialFree(tx *firestore.Transaction, guard *firestore.DocumentRef) error {
	snap, err := tx.Get(guard)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return err
	}
	if snap.Exists() {
		return ErrSerialNumberExists
	}
	return nil
}

// GetSolarUnit retrieves a unit by ID.
func (f *FirestoreProvider) GetSolarUnit(ctx context.Context, id string) (types.SolarUnit, error) {
	if id == "" {
		return types.SolarUnit{}, ErrSolarUnitNotFound
	}
	doc, err := f.client.Collection(solarUnitsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.SolarUnit{}, ErrSolarUnitNotFound
		}
		return types.SolarUnit{}, fmt.Errorf("failed to get solar unit %s: %w", id, err)
	}
	var unit types.SolarUnit
	if err := unmarshalDoc(ctx, doc, &unit); err != nil {
		return types.SolarUnit{}, err
	}
	unit.ID = doc.Ref.ID
	return unit, nil
}

// ListSolarUnits returns every unit.
func (f *FirestoreProvider) ListSolarUnits(ctx context.Context) ([]types.SolarUnit, error) {
	return f.collectSolarUnits(ctx, f.client.Collection(solarUnitsCollection).Documents(ctx))
}

// ListSolarUnitsByUser returns the units assigned to userID.
func (f *FirestoreProvider) ListSolarUnitsByUser(ctx context.Context, userID string) ([]types.SolarUnit, error) {
	if userID == "" {
		return []types.SolarUnit{}, nil
	}
	iter := f.client.Collection(solarUnitsCollection).
		Where("userId", "==", userID).
		Documents(ctx)
	return f.collectSolarUnits(ctx, iter)
}

// ListSolarUnitsByStatus returns the units with the given status.
func (f *FirestoreProvider) ListSolarUnitsByStatus(ctx context.Context, st types.SolarUnitStatus) ([]types.SolarUnit, error) {
	iter := f.client.Collection(solarUnitsCollection).
		Where("status", "==", string(st)).
		Documents(ctx)
	return f.collectSolarUnits(ctx, iter)
}

// ListUnassignedSolarUnits returns units with no user or with the UNASSIGNED
// status.
func (f *FirestoreProvider) ListUnassignedSolarUnits(ctx context.Context) ([]types.SolarUnit, error) {
	iter := f.client.Collection(solarUnitsCollection).
		WhereEntity(firestore.OrFilter{
			Filters: []firestore.EntityFilter{
				firestore.PropertyFilter{Path: "userId", Operator: "==", Value: ""},
				firestore.PropertyFilter{Path: "status", Operator: "==", Value: string(types.SolarUnitStatusUnassigned)},
			},
		}).
		Documents(ctx)
	return f.collectSolarUnits(ctx, iter)
}

// UpdateSolarUnit replaces a stored unit. A changed serial number moves the
// guard document in the same transaction.
func (f *FirestoreProvider) UpdateSolarUnit(ctx context.Context, unit types.SolarUnit) error {
	if unit.ID == "" {
		return ErrSolarUnitNotFound
	}
	ref := f.client.Collection(solarUnitsCollection).Doc(unit.ID)
	data, err := solarUnitDoc(unit)
	if err != nil {
		return err
	}
	guards := f.client.Collection(serialNumbersCollection)

	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrSolarUnitNotFound
			}
			return err
		}
		var current types.SolarUnit
		if err := unmarshalDoc(ctx, snap, &current); err != nil {
			return err
		}
		if current.SerialNumber != unit.SerialNumber {
			newGuard := guards.Doc(serialDocID(unit.SerialNumber))
			if err := checkSerialFree(tx, newGuard); err != nil {
				return err
			}
			if err := tx.Delete(guards.Doc(serialDocID(current.SerialNumber))); err != nil {
				return err
			}
			if err := tx.Create(newGuard, map[string]interface{}{"solarUnitId": unit.ID}); err != nil {
				return err
			}
		}
		return tx.Set(ref, data)
	})
	if err != nil {
		if errors.Is(err, ErrSolarUnitNotFound) || errors.Is(err, ErrSerialNumberExists) {
			return err
		}
		return fmt.Errorf("failed to update solar unit %s: %w", unit.ID, err)
	}
	return nil
}

// DeleteSolarUnit removes a unit and releases its serial number. Records of
// the unit are kept.
func (f *FirestoreProvider) DeleteSolarUnit(ctx context.Context, id string) error {
	if id == "" {
		return ErrSolarUnitNotFound
	}
	ref := f.client.Collection(solarUnitsCollection).Doc(id)

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrSolarUnitNotFound
			}
			return err
		}
		var current types.SolarUnit
		if err := unmarshalDoc(ctx, snap, &current); err != nil {
			return err
		}
		if err := tx.Delete(f.client.Collection(serialNumbersCollection).Doc(serialDocID(current.SerialNumber))); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
	if err != nil {
		if errors.Is(err, ErrSolarUnitNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete solar unit %s: %w", id, err)
	}
	return nil
}

func energyRecordDoc(rec types.EnergyRecord) (map[string]interface{}, error) {
	jsonBytes, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal energy record: %w", err)
	}
	return map[string]interface{}{
		"json":           string(jsonBytes),
		"solarUnitId":    rec.SolarUnitID,
		"timestamp":      rec.Timestamp,
		"energyProduced": rec.EnergyProduced,
	}, nil
}

// firestoreTime truncates t to the precision Firestore keeps for timestamps
// so equality queries match what was written.
func firestoreTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (f *FirestoreProvider) collectEnergyRecords(ctx context.Context, iter *firestore.DocumentIterator) ([]types.EnergyRecord, error) {
	defer iter.Stop()

	records := []types.EnergyRecord{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating energy records: %w", err)
		}
		var rec types.EnergyRecord
		if err := unmarshalDoc(ctx, doc, &rec); err != nil {
			return nil, err
		}
		rec.ID = doc.Ref.ID
		records = append(records, rec)
	}
	return records, nil
}

func (f *FirestoreProvider) unitRecords(solarUnitID string) firestore.Query {
	return f.client.Collection(energyRecordsCollection).Where("solarUnitId", "==", solarUnitID)
}

// CreateEnergyRecord stores a new record under a generated ID.
func (f *FirestoreProvider) CreateEnergyRecord(ctx context.Context, rec types.EnergyRecord) (types.EnergyRecord, error) {
	ref := f.client.Collection(energyRecordsCollection).NewDoc()
	rec.ID = ref.ID
	rec.Timestamp = firestoreTime(rec.Timestamp)
	data, err := energyRecordDoc(rec)
	if err != nil {
		return types.EnergyRecord{}, err
	}
	if _, err := ref.Create(ctx, data); err != nil {
		return types.EnergyRecord{}, fmt.Errorf("failed to create energy record: %w", err)
	}
	return rec, nil
}

// InsertEnergyRecords writes records with a BulkWriter. Records without an
// ID get a generated one.
func (f *FirestoreProvider) InsertEnergyRecords(ctx context.Context, records []types.EnergyRecord) error {
	if len(records) == 0 {
		return nil
	}
	coll := f.client.Collection(energyRecordsCollection)
	bw := f.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	for _, rec := range records {
		var ref *firestore.DocumentRef
		if rec.ID != "" {
			ref = coll.Doc(rec.ID)
		} else {
			ref = coll.NewDoc()
			rec.ID = ref.ID
		}
		rec.Timestamp = firestoreTime(rec.Timestamp)
		data, err := energyRecordDoc(rec)
		if err != nil {
			bw.End()
			return err
		}
		job, err := bw.Set(ref, data)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue energy record %s: %w", rec.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to insert %d of %d energy records: %w", len(errs), len(records), errors.Join(errs...))
	}
	return nil
}

// GetEnergyRecord retrieves a record by ID.
func (f *FirestoreProvider) GetEnergyRecord(ctx context.Context, id string) (types.EnergyRecord, error) {
	if id == "" {
		return types.EnergyRecord{}, ErrEnergyRecordNotFound
	}
	doc, err := f.client.Collection(energyRecordsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.EnergyRecord{}, ErrEnergyRecordNotFound
		}
		return types.EnergyRecord{}, fmt.Errorf("failed to get energy record %s: %w", id, err)
	}
	var rec types.EnergyRecord
	if err := unmarshalDoc(ctx, doc, &rec); err != nil {
		return types.EnergyRecord{}, err
	}
	rec.ID = doc.Ref.ID
	return rec, nil
}

// ListEnergyRecordsByUnit returns one page of records, newest first.
func (f *FirestoreProvider) ListEnergyRecordsByUnit(ctx context.Context, solarUnitID string, page, limit int) ([]types.EnergyRecord, int, error) {
	q := f.unitRecords(solarUnitID)

	res, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count energy records: %w", err)
	}
	total, err := aggregationInt(res["total"])
	if err != nil {
		return nil, 0, err
	}

	iter := q.
		OrderBy("timestamp", firestore.Desc).
		Offset((page - 1) * limit).
		Limit(limit).
		Documents(ctx)
	records, err := f.collectEnergyRecords(ctx, iter)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func aggregationInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case *firestorepb.Value:
		return int(n.GetIntegerValue()), nil
	}
	return 0, fmt.Errorf("unexpected aggregation result type %T", v)
}

// ListEnergyRecordsByDateRange returns the records in [start, end], newest
// first. A nil end leaves the range open.
func (f *FirestoreProvider) ListEnergyRecordsByDateRange(ctx context.Context, solarUnitID string, start time.Time, end *time.Time) ([]types.EnergyRecord, error) {
	q := f.unitRecords(solarUnitID).Where("timestamp", ">=", start)
	if end != nil {
		q = q.Where("timestamp", "<=", *end)
	}
	return f.collectEnergyRecords(ctx, q.OrderBy("timestamp", firestore.Desc).Documents(ctx))
}

// UpdateEnergyRecord replaces a stored record.
func (f *FirestoreProvider) UpdateEnergyRecord(ctx context.Context, rec types.EnergyRecord) error {
	if rec.ID == "" {
		return ErrEnergyRecordNotFound
	}
	rec.Timestamp = firestoreTime(rec.Timestamp)
	data, err := energyRecordDoc(rec)
	if err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(data))
	for path, v := range data {
		updates = append(updates, firestore.Update{Path: path, Value: v})
	}
	// Update fails on a missing document instead of recreating it
	_, err = f.client.Collection(energyRecordsCollection).Doc(rec.ID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrEnergyRecordNotFound
		}
		return fmt.Errorf("failed to update energy record %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteEnergyRecord removes a record.
func (f *FirestoreProvider) DeleteEnergyRecord(ctx context.Context, id string) error {
	if id == "" {
		return ErrEnergyRecordNotFound
	}
	_, err := f.client.Collection(energyRecordsCollection).Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrEnergyRecordNotFound
		}
		return fmt.Errorf("failed to delete energy record %s: %w", id, err)
	}
	return nil
}

// GetLatestEnergyRecord returns the newest record of a unit or nil.
func (f *FirestoreProvider) GetLatestEnergyRecord(ctx context.Context, solarUnitID string) (*types.EnergyRecord, error) {
	iter := f.unitRecords(solarUnitID).
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	records, err := f.collectEnergyRecords(ctx, iter)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest energy record: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// FindEnergyRecord returns a record matching unit, timestamp and energy.
func (f *FirestoreProvider) FindEnergyRecord(ctx context.Context, solarUnitID string, ts time.Time, energyProduced float64) (*types.EnergyRecord, error) {
	iter := f.unitRecords(solarUnitID).
		Where("timestamp", "==", firestoreTime(ts)).
		Where("energyProduced", "==", energyProduced).
		Limit(1).
		Documents(ctx)
	records, err := f.collectEnergyRecords(ctx, iter)
	if err != nil {
		return nil, fmt.Errorf("failed to find energy record: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// GetEnergyTotals reads every record of the unit and summarizes them.
func (f *FirestoreProvider) GetEnergyTotals(ctx context.Context, solarUnitID string) (types.EnergyTotals, error) {
	records, err := f.collectEnergyRecords(ctx, f.unitRecords(solarUnitID).Documents(ctx))
	if err != nil {
		return types.EnergyTotals{}, err
	}
	totals, ok := analytics.Totals(solarUnitID, records)
	if !ok {
		return types.EnergyTotals{}, ErrNoEnergyRecords
	}
	return totals, nil
}

// GetEnergyAnalytics reads every record of the unit and buckets them by
// period.
func (f *FirestoreProvider) GetEnergyAnalytics(ctx context.Context, solarUnitID string, period types.AnalyticsPeriod) ([]types.AnalyticsBucket, error) {
	records, err := f.collectEnergyRecords(ctx, f.unitRecords(solarUnitID).Documents(ctx))
	if err != nil {
		return nil, err
	}
	return analytics.Aggregate(records, period), nil
}
