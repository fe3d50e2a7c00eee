// Package config defines the settings surface a run is configured
// through (spec.md §6.5): engine, log, executor, batch, schema, and
// connector subtrees.
//
// # Loading
//
// Load reads an optional YAML settings file, seeds viper with the
// package's Defaults(), then layers any `dotted.key=value` CLI
// overrides (spec.md §6.4) on top:
//
//	settings, err := config.Load("cqlbulk.yaml", map[string]string{
//	    "log.maxErrors": "0",
//	})
//
// # Thresholds and execution IDs
//
// LogSettings.ParseThreshold converts the configured maxErrors string
// ("100" or "1%") into a statement.ErrorThreshold; Settings.ResolveExecutionID
// expands the engine.executionId template against a run's start time.
package config
