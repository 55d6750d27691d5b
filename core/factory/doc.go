// Package factory is the generic registry used to build pluggable modules,
// such as event-log stores and metrics sinks, from configuration. A module
// is a type name plus a raw settings map that its factory decodes.
//
//	reg := factory.NewRegistry[eventlog.Store]()
//	_ = reg.Register("jsonl", func(conf map[string]any) (eventlog.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return eventlog.NewJSONLStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "events.jsonl"}})
package factory
