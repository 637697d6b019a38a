// Package solarpanel fetches energy records from the external solar panel
// data service.
package solarpanel

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunledger/sunledger/pkg/types"
)

// Provider returns energy records measured by the solar panel service.
// Returned records carry the upstream ID when the service provides one.
type Provider interface {
	// FetchAll returns every record the service has for the unit.
	FetchAll(ctx context.Context, solarUnitID string) ([]types.EnergyRecord, error)
	// FetchFromTimestamp returns the records at or after since.
	FetchFromTimestamp(ctx context.Context, solarUnitID string, since time.Time) ([]types.EnergyRecord, error)
}

// Configured sets up the solar panel provider based on flags.
func Configured() Provider {
	provider := lflag.String("solar-panel-provider", "api", "Solar panel data provider to use (available: api, simulated)")

	var p struct{ Provider }

	api := configuredAPI()
	sim := configuredSimulated()

	lflag.Do(func() {
		switch *provider {
		case "api":
			if err := api.Validate(); err != nil {
				panic(fmt.Sprintf("solar panel api validation failed: %v", err))
			}
			p.Provider = api
		case "simulated":
			p.Provider = sim
		default:
			panic(fmt.Sprintf("unknown solar panel provider: %s", *provider))
		}
	})

	return &p
}
