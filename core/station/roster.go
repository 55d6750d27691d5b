package station

import (
	"github.com/kilianp07/wildguard/core/geo"
	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/internal/broker"
)

// FromRoster builds one agent per station. newLog may be nil.
func FromRoster(stations []model.Station, terrain geo.TerrainTable, b broker.Broker, newLog func(component string) logger.Logger) ([]*Agent, error) {
	if err := geo.ValidateRoster(stations, terrain); err != nil {
		return nil, err
	}
	agents := make([]*Agent, 0, len(stations))
	for _, st := range stations {
		var log logger.Logger
		if newLog != nil {
			log = newLog("station." + st.ID)
		}
		a, err := New(st, terrain, b, log)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}
