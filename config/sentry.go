package config

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN              string            `json:"dsn"`
	Environment      string            `json:"environment"`
	TracesSampleRate float64           `json:"traces_sample_rate"`
	Release          string            `json:"release"`
	ServerName       string            `json:"server_name"`
	Tags             map[string]string `json:"tags"`
}

// SetDefaults tags events with the park name unless a park tag is set.
func (c *SentryConfig) SetDefaults(park string) {
	if c.DSN == "" || park == "" {
		return
	}
	if c.Tags == nil {
		c.Tags = make(map[string]string)
	}
	if _, ok := c.Tags["park"]; !ok {
		c.Tags["park"] = park
	}
}
