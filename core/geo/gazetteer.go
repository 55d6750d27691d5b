package geo

import (
	"fmt"
	"math"

	"github.com/kilianp07/wildguard/core/model"
)

// Place is a named landmark used to describe incident locations.
type Place struct {
	Name     string         `json:"name"`
	Location model.Location `json:"location"`
	RadiusKM float64        `json:"radius_km"`
}

// Gazetteer names locations after the nearest landmark.
type Gazetteer struct {
	places []Place
}

// NewGazetteer copies places into a Gazetteer.
func NewGazetteer(places []Place) *Gazetteer {
	return &Gazetteer{places: append([]Place(nil), places...)}
}

// Describe returns the landmark loc falls inside, or the nearest one with
// its distance. It returns the raw coordinate when no places are known.
func (g *Gazetteer) Describe(loc model.Location) string {
	if g == nil || len(g.places) == 0 {
		return loc.String()
	}
	nearest := -1
	best := math.Inf(1)
	for i, p := range g.places {
		d := DistanceKM(loc, p.Location)
		if d <= p.RadiusKM {
			return p.Name
		}
		if d < best {
			best, nearest = d, i
		}
	}
	return formatNear(g.places[nearest].Name, best)
}

func formatNear(name string, km float64) string {
	return fmt.Sprintf("near %s (%.1f km)", name, km)
}
