package dispatch

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/wildguard/core/model"
)

var decidedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func bid(station string, eta, dist float64, available, capable bool) model.Bid {
	return model.Bid{IncidentID: "inc-1", StationID: station, ETAMinutes: eta, DistanceKM: dist, Available: available, Capable: capable}
}

func TestSelectFastestWins(t *testing.T) {
	cases := map[string]struct {
		bids   []model.Bid
		winner string
		ranked []string
		loser  string
	}{
		"closer station": {
			bids:   []model.Bid{bid("B", 12, 2, true, true), bid("A", 10, 1, true, true)},
			winner: "A", ranked: []string{"A", "B"}, loser: "B",
		},
		"two stations 25.3 km and 10.1 km away": {
			bids:   []model.Bid{bid("A", 59, 25.3, true, true), bid("B", 27, 10.1, true, true)},
			winner: "B", ranked: []string{"B", "A"}, loser: "A",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := Select(model.Incident{ID: "inc-1"}, tc.bids, nil, decidedAt)

			assert.Equal(t, model.StatusDispatched, d.Status)
			assert.Equal(t, tc.winner, d.WinnerID)
			assert.Equal(t, map[string]model.RejectionReason{tc.loser: model.ReasonSlowerETA}, d.Rejections)
			assert.Equal(t, tc.ranked, stationIDs(d.Ranked))
			assert.Equal(t, decidedAt, d.DecidedAt)
			assert.Empty(t, d.Reason)
		})
	}
}

func TestSelectSkipsUnavailable(t *testing.T) {
	inc := model.Incident{ID: "inc-1"}
	d := Select(inc, []model.Bid{bid("A", 10, 1, false, true), bid("B", 12, 2, true, true)}, nil, decidedAt)

	assert.Equal(t, "B", d.WinnerID)
	assert.Equal(t, model.ReasonUnavailable, d.Rejections["A"])
	assert.Equal(t, []string{"B", "A"}, stationIDs(d.Ranked))
}

func TestSelectCaptureRequirement(t *testing.T) {
	inc := model.Incident{ID: "inc-1", RequiresCapture: true}
	d := Select(inc, []model.Bid{bid("A", 10, 1, true, false)}, nil, decidedAt)

	assert.Equal(t, model.StatusDispatchFailed, d.Status)
	assert.Empty(t, d.WinnerID)
	assert.Equal(t, model.ReasonLacksCapability, d.Rejections["A"])
	assert.Equal(t, ErrNoEligible.Error(), d.Reason)

	inc.RequiresCapture = false
	d = Select(inc, []model.Bid{bid("A", 10, 1, true, false)}, nil, decidedAt)
	assert.Equal(t, "A", d.WinnerID, "capability ignored when not required")
}

func TestSelectUnavailableBeatsCapabilityReason(t *testing.T) {
	inc := model.Incident{ID: "inc-1", RequiresCapture: true}
	d := Select(inc, []model.Bid{bid("A", 10, 1, false, false)}, nil, decidedAt)
	assert.Equal(t, model.ReasonUnavailable, d.Rejections["A"])
}

func TestSelectTieBreaks(t *testing.T) {
	inc := model.Incident{ID: "inc-1"}
	d := Select(inc, []model.Bid{bid("A", 10, 3, true, true), bid("B", 10, 2, true, true)}, nil, decidedAt)
	assert.Equal(t, "B", d.WinnerID, "shorter distance on equal ETA")

	d = Select(inc, []model.Bid{bid("Zeta", 10, 2, true, true), bid("Alpha", 10, 2, true, true)}, nil, decidedAt)
	assert.Equal(t, "Alpha", d.WinnerID, "station id on full tie")
}

func TestSelectNoBids(t *testing.T) {
	d := Select(model.Incident{ID: "inc-1"}, nil, nil, decidedAt)
	assert.Equal(t, model.StatusDispatchFailed, d.Status)
	assert.Empty(t, d.WinnerID)
	assert.NotNil(t, d.Ranked)
	assert.Empty(t, d.Ranked)
	assert.Equal(t, ErrNoResponders.Error(), d.Reason)
}

func TestSelectReserved(t *testing.T) {
	inc := model.Incident{ID: "inc-1"}
	d := Select(inc, []model.Bid{bid("A", 10, 1, true, true), bid("B", 12, 2, true, true)}, map[string]bool{"A": true}, decidedAt)
	assert.Equal(t, "B", d.WinnerID)
	assert.Equal(t, model.ReasonUnavailable, d.Rejections["A"])
}

func TestSelectDeterministicAcrossOrderings(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inc := model.Incident{ID: "inc-1", RequiresCapture: true}
	for trial := 0; trial < 50; trial++ {
		var bids []model.Bid
		for i := 0; i < 8; i++ {
			bids = append(bids, bid(string(rune('A'+i)),
				float64(5+rng.Intn(4)), float64(rng.Intn(3)),
				rng.Intn(3) > 0, rng.Intn(4) > 0))
		}
		want := Select(inc, bids, nil, decidedAt)
		for p := 0; p < 5; p++ {
			shuffled := append([]model.Bid(nil), bids...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			assert.Equal(t, want, Select(inc, shuffled, nil, decidedAt))
		}
		if want.Status == model.StatusDispatched {
			w, ok := want.Winner()
			assert.True(t, ok)
			assert.True(t, w.Available, "unavailable station won")
			assert.True(t, w.Capable, "incapable station won")
			assert.NotContains(t, want.Rejections, want.WinnerID)
		}
		assert.Len(t, want.Ranked, len(bids))
		assert.Equal(t, len(bids)-len(want.Rejections), winners(want))
	}
}

func winners(d model.DispatchDecision) int {
	if d.WinnerID == "" {
		return 0
	}
	return 1
}

func stationIDs(bids []model.Bid) []string {
	out := make([]string, len(bids))
	for i, b := range bids {
		out[i] = b.StationID
	}
	return out
}
