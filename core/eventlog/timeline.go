package eventlog

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/wildguard/core/model"
)

// Timeline returns every record correlated with incidentID in broker order.
func Timeline(ctx context.Context, s Store, incidentID string) ([]Record, error) {
	return s.Query(ctx, Query{IncidentID: incidentID})
}

// Stats summarises a set of records.
type Stats struct {
	Total     int            `json:"total"`
	ByTopic   map[string]int `json:"by_topic"`
	Incidents int            `json:"incidents"`
	First     time.Time      `json:"first,omitempty"`
	Last      time.Time      `json:"last,omitempty"`
	Dispatch  DispatchStats  `json:"dispatch"`
}

// DispatchStats describes the decisions among the records. Latency is
// measured from the incident record to its decision record, so it is only
// known when both are in range.
type DispatchStats struct {
	Decisions  int     `json:"decisions"`
	Dispatched int     `json:"dispatched"`
	Failed     int     `json:"failed"`
	MeanETAMin float64 `json:"mean_eta_minutes,omitempty"`
	P95ETAMin  float64 `json:"p95_eta_minutes,omitempty"`
	MeanLatMS  float64 `json:"mean_latency_ms,omitempty"`
	P95LatMS   float64 `json:"p95_latency_ms,omitempty"`
}

// Summarize computes statistics over the records matching q.
func Summarize(ctx context.Context, s Store, q Query) (Stats, error) {
	recs, err := s.Query(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByTopic: make(map[string]int)}
	incidents := make(map[string]struct{})
	reported := make(map[string]time.Time)
	var etas, latencies []float64
	for _, r := range recs {
		st.Total++
		st.ByTopic[r.Topic]++
		if r.CorrelationID != "" {
			incidents[r.CorrelationID] = struct{}{}
		}
		if st.First.IsZero() || r.Timestamp.Before(st.First) {
			st.First = r.Timestamp
		}
		if r.Timestamp.After(st.Last) {
			st.Last = r.Timestamp
		}
		switch r.Topic {
		case model.TopicIncidents:
			reported[r.CorrelationID] = r.Timestamp
		case model.TopicDecisions:
			var d model.DispatchDecision
			if err := json.Unmarshal(r.Payload, &d); err != nil {
				continue
			}
			st.Dispatch.Decisions++
			if w, ok := d.Winner(); ok {
				st.Dispatch.Dispatched++
				etas = append(etas, w.ETAMinutes)
			} else {
				st.Dispatch.Failed++
			}
			if at, ok := reported[d.IncidentID]; ok {
				latencies = append(latencies, float64(r.Timestamp.Sub(at).Milliseconds()))
			}
		}
	}
	st.Incidents = len(incidents)
	st.Dispatch.MeanETAMin, st.Dispatch.P95ETAMin = meanP95(etas)
	st.Dispatch.MeanLatMS, st.Dispatch.P95LatMS = meanP95(latencies)
	return st, nil
}

func meanP95(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	sort.Float64s(x)
	return stat.Mean(x, nil), stat.Quantile(0.95, stat.Empirical, x, nil)
}
