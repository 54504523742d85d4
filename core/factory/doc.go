// Package factory provides a small generic registry used to instantiate
// modules from configuration. A module is described by a type string and a map
// of raw settings; factories decode the settings into typed structs and return
// the concrete implementation. Optimization strategies and metrics sinks are
// both built this way.
//
// Example usage:
//
//	reg := factory.NewRegistry[optimizer.Optimizer]()
//	reg.Register("ga", func(conf map[string]any) (optimizer.Optimizer, error) {
//	    var c optimizer.GAConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return optimizer.NewGA(c, rng, log)
//	})
//	opt, err := reg.Create(factory.ModuleConfig{Type: "ga", Conf: map[string]any{"generations": 10}})
package factory
