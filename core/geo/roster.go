package geo

import (
	"fmt"

	"github.com/kilianp07/wildguard/core/model"
)

// ValidateRoster checks every station against the terrain table so scoring
// cannot fail at bid time.
func ValidateRoster(stations []model.Station, terrain TerrainTable) error {
	if len(stations) == 0 {
		return fmt.Errorf("%w: empty station roster", ErrConfiguration)
	}
	seen := make(map[string]struct{}, len(stations))
	for _, s := range stations {
		if s.ID == "" {
			return fmt.Errorf("%w: station without id", ErrConfiguration)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate station %s", ErrConfiguration, s.ID)
		}
		seen[s.ID] = struct{}{}
		factor, err := terrain.Factor(s.Terrain)
		if err != nil {
			return fmt.Errorf("station %s: %w", s.ID, err)
		}
		if _, err := BestVehicle(s.Vehicles, 0, factor); err != nil {
			return fmt.Errorf("station %s: %w", s.ID, err)
		}
	}
	return nil
}
