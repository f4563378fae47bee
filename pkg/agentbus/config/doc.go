/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting bus settings from YAML/JSON structures without
verbose type assertions and nil checks.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "flush_interval": "10ms",
	    "replay_limit":   5000,
	})

	interval := cfg.Duration("flush_interval", 10*time.Millisecond)
	limit := cfg.Int("replay_limit", 5000)
	missing := cfg.String("missing", "default") // "default"

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("10ms", "15s")
  - int/float64: interpreted as milliseconds
  - time.Duration: used directly

All methods return the default value if:
  - The key is missing
  - The value cannot be converted to the requested type
  - The conversion would lose precision (e.g., float to int with fraction)

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("agentbus.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	bus := agentbus.New(agentbus.OptionsFromConfig(cfg.Sub("bus"))...)

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
