package eventlog

import "github.com/kilianp07/wildguard/core/factory"

var (
	storeRegistry = factory.NewRegistry[Store]()
	sinkRegistry  = factory.NewRegistry[Sink]()
)

func init() {
	_ = RegisterStore("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
	_ = RegisterStore("jsonl", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "data/eventlog.jsonl"
		}
		return NewJSONLStore(c.Path)
	})
	_ = RegisterStore("jsonl_rotating", func(conf map[string]any) (Store, error) {
		c := struct {
			Path       string `json:"path"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
			MaxAgeDays int    `json:"max_age_days"`
		}{Path: "data/eventlog.jsonl", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 30}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "data/eventlog.db"
		}
		return NewSQLiteStore(c.Path)
	})
}

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// RegisterSink adds an exporter factory identified by name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinkRegistry.Register(name, f)
}

// Config selects the store and exporters.
type Config struct {
	Store     factory.ModuleConfig   `json:"store"`
	Exporters []factory.ModuleConfig `json:"exporters"`
}

// NewStore creates the configured store, defaulting to memory.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NewMemoryStore(), nil
	}
	return storeRegistry.Create(cfg)
}

// NewSinks creates the configured exporters.
func NewSinks(cfgs []factory.ModuleConfig) ([]Sink, error) {
	return sinkRegistry.CreateAll(cfgs, func(s Sink) { _ = s.Close() })
}
