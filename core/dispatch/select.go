package dispatch

import (
	"errors"
	"sort"
	"time"

	"github.com/kilianp07/wildguard/core/model"
)

// ErrNoResponders marks a bid window that closed without any bids.
var ErrNoResponders = errors.New("timeout: no responders")

// ErrNoEligible marks a round where every bid was rejected.
var ErrNoEligible = errors.New("no eligible station")

// Select applies the deterministic selection rules to bids for inc:
// unavailable and reserved stations are rejected, stations without capture
// equipment are rejected when the incident requires it, and the remaining
// bids are ordered by ETA, then distance, then station id. Ranked always
// contains every bid, best first.
func Select(inc model.Incident, bids []model.Bid, reserved map[string]bool, now time.Time) model.DispatchDecision {
	type entry struct {
		bid    model.Bid
		reason model.RejectionReason
	}
	entries := make([]entry, len(bids))
	for i, b := range bids {
		entries[i] = entry{bid: b, reason: rejection(inc, b, reserved)}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ei, ej := entries[i].reason == "", entries[j].reason == ""
		if ei != ej {
			return ei
		}
		return better(entries[i].bid, entries[j].bid)
	})

	d := model.DispatchDecision{
		IncidentID: inc.ID,
		Status:     model.StatusDispatchFailed,
		Ranked:     make([]model.Bid, len(entries)),
		Rejections: make(map[string]model.RejectionReason, len(entries)),
		DecidedAt:  now.UTC(),
	}
	for i, e := range entries {
		d.Ranked[i] = e.bid
		switch {
		case e.reason != "":
			d.Rejections[e.bid.StationID] = e.reason
		case d.WinnerID == "":
			d.WinnerID = e.bid.StationID
			d.Status = model.StatusDispatched
		default:
			d.Rejections[e.bid.StationID] = model.ReasonSlowerETA
		}
	}
	switch {
	case len(bids) == 0:
		d.Reason = ErrNoResponders.Error()
	case d.WinnerID == "":
		d.Reason = ErrNoEligible.Error()
	}
	return d
}

func rejection(inc model.Incident, b model.Bid, reserved map[string]bool) model.RejectionReason {
	if !b.Available || reserved[b.StationID] {
		return model.ReasonUnavailable
	}
	if inc.RequiresCapture && !b.Capable {
		return model.ReasonLacksCapability
	}
	return ""
}

// better is the total order on eligible bids.
func better(a, b model.Bid) bool {
	if a.ETAMinutes != b.ETAMinutes {
		return a.ETAMinutes < b.ETAMinutes
	}
	if a.DistanceKM != b.DistanceKM {
		return a.DistanceKM < b.DistanceKM
	}
	return a.StationID < b.StationID
}
