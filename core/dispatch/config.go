package dispatch

import (
	"fmt"
	"time"
)

// Late bid policies.
const (
	LateBidDiscard = "discard"
	LateBidAudit   = "audit"
)

// Config defines dispatch protocol settings.
type Config struct {
	// BidWindowMS bounds how long the coordinator collects bids.
	BidWindowMS int `json:"bid_window_ms"`
	// WaitFullWindow disables closing the window once every station answered.
	WaitFullWindow bool `json:"wait_full_window"`
	// LateBidPolicy is "discard" (log and drop) or "audit" (also republish
	// on the late-bid topic).
	LateBidPolicy string `json:"late_bid_policy"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BidWindowMS <= 0 {
		c.BidWindowMS = 2000
	}
	if c.LateBidPolicy == "" {
		c.LateBidPolicy = LateBidDiscard
	}
}

// Validate checks the policy name.
func (c Config) Validate() error {
	if c.LateBidPolicy != LateBidDiscard && c.LateBidPolicy != LateBidAudit {
		return fmt.Errorf("unknown late_bid_policy %s", c.LateBidPolicy)
	}
	return nil
}

// BidWindow returns the window as a duration.
func (c Config) BidWindow() time.Duration {
	return time.Duration(c.BidWindowMS) * time.Millisecond
}
