package solarpanel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sony/gobreaker"
	"github.com/sunledger/sunledger/pkg/common"
	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/types"
)

const errorPrefix = "Solar Panel API Error: "

// API implements the Provider interface against the solar panel HTTP API.
// Requests are authenticated with a shared bearer secret and guarded by a
// circuit breaker that only counts transport failures and 5xx responses.
type API struct {
	client  *http.Client
	baseURL string
	secret  string
	breaker *gobreaker.CircuitBreaker
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "solar-panel-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a classified 4xx means the service is healthy
		IsSuccessful: func(err error) bool {
			var te *types.Error
			return err == nil || errors.As(err, &te)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := context.Background()
			log.Ctx(ctx).WarnContext(
				ctx,
				"circuit breaker changed state",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// configuredAPI sets up flags for the API client and returns the instance.
func configuredAPI() *API {
	a := &API{
		breaker: newBreaker(),
	}
	apiURL := lflag.String("solar-panel-api-url", "http://localhost:8001", "Base URL of the solar panel data API")
	secret := lflag.String("solar-panel-api-secret", "", "Bearer secret sent to the solar panel data API")
	timeout := lflag.Duration("solar-panel-api-timeout", 30*time.Second, "Timeout for requests to the solar panel data API")

	lflag.Do(func() {
		a.baseURL = *apiURL
		a.secret = *secret
		a.client = common.HTTPClient(*timeout)
	})

	return a
}

// Validate ensures the configuration is valid.
func (a *API) Validate() error {
	if a.baseURL == "" {
		return fmt.Errorf("solar-panel-api-url is required")
	}
	if _, err := url.Parse(a.baseURL); err != nil {
		return fmt.Errorf("failed to parse solar panel api url (%s): %w", a.baseURL, err)
	}
	return nil
}

// upstreamRecord is a record as returned by the API. Older deployments
// return the ID as "_id".
type upstreamRecord struct {
	ID             string    `json:"id"`
	LegacyID       string    `json:"_id"`
	SolarUnitID    string    `json:"solarUnitId"`
	Timestamp      time.Time `json:"timestamp"`
	EnergyProduced float64   `json:"energyProduced"`
	IntervalHours  float64   `json:"intervalHours"`
}

func (r upstreamRecord) record(solarUnitID string) types.EnergyRecord {
	rec := types.EnergyRecord{
		ID:             r.ID,
		SolarUnitID:    r.SolarUnitID,
		Timestamp:      r.Timestamp.UTC(),
		EnergyProduced: r.EnergyProduced,
		IntervalHours:  r.IntervalHours,
	}
	if rec.ID == "" {
		rec.ID = r.LegacyID
	}
	if rec.SolarUnitID == "" {
		rec.SolarUnitID = solarUnitID
	}
	if rec.IntervalHours == 0 {
		rec.IntervalHours = types.DefaultIntervalHours
	}
	return rec
}

// FetchAll returns every record for the unit.
func (a *API) FetchAll(ctx context.Context, solarUnitID string) ([]types.EnergyRecord, error) {
	req, err := a.newGetRequest(ctx, url.Values{}, "api", "energy-records", "solar-unit", solarUnitID)
	if err != nil {
		return nil, err
	}
	return a.fetch(req, solarUnitID)
}

// FetchFromTimestamp returns the records from since up to the latest
// available.
func (a *API) FetchFromTimestamp(ctx context.Context, solarUnitID string, since time.Time) ([]types.EnergyRecord, error) {
	params := url.Values{}
	params.Set("startDate", since.UTC().Format(time.RFC3339Nano))
	req, err := a.newGetRequest(ctx, params, "api", "energy-records", "solar-unit", solarUnitID, "date-range")
	if err != nil {
		return nil, err
	}
	return a.fetch(req, solarUnitID)
}

func (a *API) newGetRequest(ctx context.Context, params url.Values, elem ...string) (*http.Request, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, elem...)
	if err != nil {
		return nil, err
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.secret)
	return req, nil
}

func (a *API) fetch(req *http.Request, solarUnitID string) ([]types.EnergyRecord, error) {
	res, err := a.breaker.Execute(func() (interface{}, error) {
		var upstream []upstreamRecord
		if err := a.doRequest(req, &upstream); err != nil {
			return nil, err
		}
		return upstream, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%sservice unavailable: %w", errorPrefix, err)
		}
		return nil, err
	}

	upstream := res.([]upstreamRecord)
	records := make([]types.EnergyRecord, len(upstream))
	for i, r := range upstream {
		records[i] = r.record(solarUnitID)
	}
	log.Ctx(req.Context()).DebugContext(
		req.Context(),
		"fetched solar panel records",
		slog.String("solarUnitId", solarUnitID),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// doRequest executes req and decodes a successful JSON response into dest.
// Non-2xx responses are classified by status code.
func (a *API) doRequest(req *http.Request, dest interface{}) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s%w", errorPrefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		log.Ctx(req.Context()).ErrorContext(req.Context(), "failed to decode solar panel response", slog.Any("error", err))
		return fmt.Errorf("%sinvalid response: %w", errorPrefix, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var payload struct {
		Message string `json:"message"`
	}
	msg := http.StatusText(resp.StatusCode)
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}
	msg = errorPrefix + msg

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return types.Errorf(types.ErrValidation, "%s", msg)
	case http.StatusUnauthorized:
		return types.Errorf(types.ErrUnauthorized, "%s", msg)
	case http.StatusForbidden:
		return types.Errorf(types.ErrForbidden, "%s", msg)
	case http.StatusNotFound:
		return types.Errorf(types.ErrNotFound, "%s", msg)
	}
	return fmt.Errorf("%s (status %d)", msg, resp.StatusCode)
}
