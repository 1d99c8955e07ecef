// Package factory provides a small generic registry used to instantiate
// pluggable modules (hardware boards, metrics sinks) from configuration.
// Modules are defined by a type string and a map of raw settings. Factories
// decode the settings into typed structs and return the concrete
// implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[hardware.Board]()
//	reg.Register("sim", func(conf map[string]any) (hardware.Board, error) {
//	    var c struct{ DistanceCM float64 `json:"distance_cm"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newSimBoard(c.DistanceCM), nil
//	})
//	b, err := reg.Create(factory.ModuleConfig{Type: "sim"})
package factory
