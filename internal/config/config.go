package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/shepherd/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix namespaces every environment variable the loader reads.
const envPrefix = "SHEPHERD_"

// LoadConfig fills opts from the TOML file and environment, with precedence
// CLI flags > env vars > config file > struct defaults. Fields opt in via
// `toml:"section.key"` and `env:"KEY"` tags. Flags the user set explicitly
// on the command line are never overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	changed := changedFlagSet(cmd)

	if err := applyFileValues(v, changed); err != nil {
		return err
	}
	applyEnvOverrides(v, changed)
	return nil
}

// changedFlagSet collects the flag names the user passed on the CLI.
func changedFlagSet(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

// applyFileValues reads the TOML file named by the struct's Config field and
// copies tagged values into fields the CLI did not set. A missing file is
// fine; a file that fails to parse is an error.
func applyFileValues(v reflect.Value, changed map[string]bool) error {
	t := v.Type()

	var configPath string
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			configPath = v.Field(i).String()
			break
		}
	}
	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil
	}

	var parsed map[string]any
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changed[fieldNameToFlag(fieldType.Name)] {
			continue
		}
		tomlPath := fieldType.Tag.Get("toml")
		if tomlPath == "" {
			continue
		}
		if value := getNestedValue(parsed, tomlPath); value != nil {
			setFieldValue(v.Field(i), value)
		}
	}
	return nil
}

// applyEnvOverrides copies SHEPHERD_* environment values into tagged fields
// the CLI did not set.
func applyEnvOverrides(v reflect.Value, changed map[string]bool) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changed[fieldNameToFlag(fieldType.Name)] {
			continue
		}
		envKey := fieldType.Tag.Get("env")
		if envKey == "" {
			continue
		}
		if envValue := os.Getenv(envPrefix + envKey); envValue != "" {
			setFieldValueFromString(v.Field(i), envValue)
		}
	}
}

// fieldNameToFlag converts a struct field name to its CLI flag name.
// "LoggingLevel" becomes "logging-level", "Port" becomes "port".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue walks a dotted path ("supervisor.tick_delay") through
// nested TOML tables.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

// setFieldValue assigns a decoded TOML value to a struct field. Values of
// the wrong type are silently skipped, the field keeps its default.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, ok := value.(int64); ok {
			field.SetInt(i)
		} else if i, intOk := value.(int); intOk {
			field.SetInt(int64(i))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			if arr, ok := value.([]any); ok {
				slice := make([]string, len(arr))
				for i, v := range arr {
					if s, strOk := v.(string); strOk {
						slice[i] = s
					}
				}
				field.Set(reflect.ValueOf(slice))
			}
		}
	}
}

// setFieldValueFromString assigns an environment variable string to a struct
// field, parsing bools and ints and splitting slices on commas.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			slice := make([]string, len(parts))
			for i, part := range parts {
				slice[i] = strings.TrimSpace(part)
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// LoadLoggingConfig reads the [logging] table from a TOML config file.
// Missing or unreadable files yield the defaults, info level and text format.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var rawConfig struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &rawConfig); err != nil {
		return cfg
	}

	// level and format are reserved keys, everything else names a module
	for key, value := range rawConfig.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}

	return cfg
}
