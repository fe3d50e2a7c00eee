package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// readFileWithEnv reads path and substitutes ${VAR_NAME} references
// using the environment, the teacher's own connector-config convention.
func readFileWithEnv(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied via -f/-c flags
	if err != nil {
		return "", err
	}
	return substituteEnvVars(string(data)), nil
}

// substituteEnvVars replaces ${VAR_NAME} references with the matching
// environment variable's value.
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}

// toMap round-trips settings through YAML into a nested
// map[string]interface{}, suitable for seeding viper's per-key
// defaults (viper.SetDefault accepts a nested map for a top-level
// key).
func toMap(settings Settings) (map[string]interface{}, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return normalizeYAMLMap(out).(map[string]interface{}), nil
}

// normalizeYAMLMap recursively converts map[string]interface{} keys
// yaml.v3 may decode as map[interface{}]interface{} (older behavior)
// into map[string]interface{}, which viper requires.
func normalizeYAMLMap(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, sub := range val {
			out[k] = normalizeYAMLMap(sub)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, sub := range val {
			out[strings.ToLower(toString(k))] = normalizeYAMLMap(sub)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, sub := range val {
			out[i] = normalizeYAMLMap(sub)
		}
		return out
	default:
		return v
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
