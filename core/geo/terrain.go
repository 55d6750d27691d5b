package geo

import (
	"fmt"
	"sort"
	"strings"
)

// TerrainTable maps terrain names to speed multipliers.
type TerrainTable map[string]float64

// DefaultTerrain is the built-in factor table.
func DefaultTerrain() TerrainTable {
	return TerrainTable{
		"forest":       0.3,
		"forest_dense": 0.3,
		"wetland":      0.2,
		"grassland":    1.0,
		"road":         1.5,
		"scrubland":    0.7,
	}
}

// Factor returns the multiplier for terrain.
func (t TerrainTable) Factor(terrain string) (float64, error) {
	f, ok := t[strings.ToLower(terrain)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown terrain %q", ErrConfiguration, terrain)
	}
	return f, nil
}

// Validate rejects empty tables and non-positive factors.
func (t TerrainTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty terrain table", ErrConfiguration)
	}
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if t[k] <= 0 {
			return fmt.Errorf("%w: terrain %q has factor %.2f", ErrConfiguration, k, t[k])
		}
	}
	return nil
}
