// Package config defines the resolved configuration surface of a run
// (spec.md §6.5): the engine, log, executor, batch, schema, and
// connector subtrees, loaded from a YAML settings file via
// gopkg.in/yaml.v3 and overridable from the CLI via
// github.com/spf13/viper's dotted-key binding.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

// EngineSettings controls run-level behavior (spec.md §6.5
// "engine.dryRun", "engine.executionId").
type EngineSettings struct {
	// DryRun skips execution and validates mapping only (spec.md §4.1).
	DryRun bool `yaml:"dryRun" mapstructure:"dryRun"`
	// ExecutionID is a template for the operation directory name, e.g.
	// "LOAD_%1$s" or "LOAD_{date}", where %1$s and {date} are replaced
	// with the run's start time in UTC formatted as yyyyMMdd_HHmmss
	// (grounded on DSBulk's EngineSettings.java template semantics).
	ExecutionID string `yaml:"executionId" mapstructure:"executionId"`
}

// LogSettings controls the log manager (spec.md §6.5 "log.*").
type LogSettings struct {
	// MaxErrors is either an absolute count ("0", "100") or a ratio
	// ("1%", "0.5%"); see ParseThreshold.
	MaxErrors string `yaml:"maxErrors" mapstructure:"maxErrors"`
	// MaxErrorsMinSample is the minimum total_items before a ratio
	// MaxErrors can trip (spec.md §8 "ratio(r, m)").
	MaxErrorsMinSample int64 `yaml:"maxErrorsMinSample" mapstructure:"maxErrorsMinSample"`
	// MaxQueryWarnings caps the number of server-side warnings logged
	// before query_warnings_handler suppresses the rest.
	MaxQueryWarnings int64 `yaml:"maxQueryWarnings" mapstructure:"maxQueryWarnings"`
	// Directory is the output root beneath which the executionId
	// operation directory is created.
	Directory string `yaml:"directory" mapstructure:"directory"`
	// Verbosity controls statement/row formatting detail, 0..3.
	Verbosity int `yaml:"verbosity" mapstructure:"verbosity"`
}

// ExecutorSettings controls the executor adapter (spec.md §6.5
// "executor.*").
type ExecutorSettings struct {
	MaxInFlight  int     `yaml:"maxInFlight" mapstructure:"maxInFlight"`
	MaxPerSecond float64 `yaml:"maxPerSecond" mapstructure:"maxPerSecond"`
}

// BatchSettings controls the statement batcher (spec.md §6.5
// "batch.*").
type BatchSettings struct {
	// Mode is "PARTITION_KEY" or "REPLICA_SET".
	Mode               string `yaml:"mode" mapstructure:"mode"`
	BufferSize         int    `yaml:"bufferSize" mapstructure:"bufferSize"`
	MaxBatchStatements int    `yaml:"maxBatchStatements" mapstructure:"maxBatchStatements"`
	MaxBatchSizeBytes  int    `yaml:"maxBatchSizeBytes" mapstructure:"maxBatchSizeBytes"`
}

// SchemaSettings names the load/unload target and its mapping (spec.md
// §6.5 "schema.*").
type SchemaSettings struct {
	Keyspace string `yaml:"keyspace" mapstructure:"keyspace"`
	Table    string `yaml:"table" mapstructure:"table"`
	Mapping  string `yaml:"mapping" mapstructure:"mapping"`
	Query    string `yaml:"query" mapstructure:"query"`
}

// ConnectorSettings selects the source/sink connector and carries its
// connector-specific subtree verbatim (spec.md §6.5 "connector.*").
type ConnectorSettings struct {
	Name string                 `yaml:"name" mapstructure:"name"`
	URLs []string               `yaml:"urls" mapstructure:"urls"`
	Opts map[string]interface{} `yaml:"opts" mapstructure:"opts"`
}

// Settings is the fully resolved configuration for one run.
type Settings struct {
	Engine    EngineSettings    `yaml:"engine" mapstructure:"engine"`
	Log       LogSettings       `yaml:"log" mapstructure:"log"`
	Executor  ExecutorSettings  `yaml:"executor" mapstructure:"executor"`
	Batch     BatchSettings     `yaml:"batch" mapstructure:"batch"`
	Schema    SchemaSettings    `yaml:"schema" mapstructure:"schema"`
	Connector ConnectorSettings `yaml:"connector" mapstructure:"connector"`
}

// Defaults returns the settings tree's documented defaults, matching
// DSBulk's own engine defaults where the spec is silent.
func Defaults() Settings {
	return Settings{
		Engine: EngineSettings{ExecutionID: "CQLBULK_%1$s"},
		Log: LogSettings{
			MaxErrors:          "100",
			MaxErrorsMinSample: 100,
			MaxQueryWarnings:   10,
			Directory:          "./logs",
			Verbosity:          1,
		},
		Executor: ExecutorSettings{MaxInFlight: 128},
		Batch: BatchSettings{
			Mode:               "PARTITION_KEY",
			BufferSize:         1000,
			MaxBatchStatements: 32,
			MaxBatchSizeBytes:  65536,
		},
	}
}

// Load reads a YAML settings file (if path is non-empty), layers
// dotted-key overrides (as produced by CLI args of the form
// `dotted.key=value`, per spec.md §6.4) on top via viper, and returns
// the resolved Settings. Env vars are substituted in the raw YAML
// before parsing via the teacher's own ${VAR_NAME} convention.
func Load(path string, overrides map[string]string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	settings := Defaults()
	defaultsMap, err := toMap(settings)
	if err != nil {
		return nil, fmt.Errorf("config: building defaults: %w", err)
	}
	for k, val := range defaultsMap {
		v.SetDefault(k, val)
	}

	if path != "" {
		data, err := readFileWithEnv(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := v.ReadConfig(strings.NewReader(data)); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	for key, val := range overrides {
		v.Set(key, val)
	}

	var resolved Settings
	if err := v.Unmarshal(&resolved); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &resolved, nil
}

// ParseThreshold converts LogSettings.MaxErrors ("N" or "N%") into an
// statement.ErrorThreshold, using MaxErrorsMinSample as the ratio form's
// minimum sample (spec.md §6.5, §8 "ratio(r, m)").
func (l LogSettings) ParseThreshold() (statement.ErrorThreshold, error) {
	raw := strings.TrimSpace(l.MaxErrors)
	if raw == "" {
		return statement.Unlimited(), nil
	}
	if strings.HasSuffix(raw, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return statement.ErrorThreshold{}, fmt.Errorf("config: invalid ratio maxErrors %q: %w", raw, err)
		}
		return statement.RatioThreshold(pct/100.0, l.MaxErrorsMinSample), nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return statement.ErrorThreshold{}, fmt.Errorf("config: invalid absolute maxErrors %q: %w", raw, err)
	}
	return statement.Absolute(n), nil
}

// ResolveExecutionID expands the %1$s and {date} placeholders in
// Engine.ExecutionID with start, in UTC, formatted as yyyyMMdd_HHmmss
// (spec.md §6.4 "--executionId <tmpl>"; grounded on EngineSettings.java's
// template semantics, not a literal string).
func (s Settings) ResolveExecutionID(start time.Time) string {
	tmpl := s.Engine.ExecutionID
	if tmpl == "" {
		tmpl = "CQLBULK_%1$s"
	}
	ts := start.UTC().Format("20060102_150405")
	return strings.ReplaceAll(strings.ReplaceAll(tmpl, "%1$s", ts), "{date}", ts)
}

// Render marshals the fully-resolved Settings tree back to YAML, the
// snapshot effective-settings.log holds (spec.md §6.3 "an
// effective-settings.log capturing the fully resolved configuration").
// Falls back to a best-effort fmt.Sprintf dump if marshaling itself
// fails, since a broken effective-settings.log is worse than an ugly
// one.
func (s Settings) Render() string {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%+v\n", s)
	}
	return string(b)
}
