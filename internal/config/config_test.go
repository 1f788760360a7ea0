package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

// daemonOptions mirrors the shape of the main Options struct: a Config path
// field plus tagged settings spanning several TOML tables.
type daemonOptions struct {
	Config string `help:"Config file path"`

	UpstreamHost string   `toml:"upstream.host" env:"UPSTREAM_HOST"`
	UpstreamPort int      `toml:"upstream.port" env:"UPSTREAM_PORT"`
	OutputFolder string   `toml:"archive.output_folder" env:"OUTPUT_FOLDER"`
	TickDelay    string   `toml:"supervisor.tick_delay" env:"TICK_DELAY"`
	Debug        bool     `toml:"debug" env:"DEBUG"`
	Tags         []string `toml:"server.tags" env:"TAGS"`
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTempConfig(t, `
debug = true

[upstream]
host = "10.0.0.5"
port = 9100

[archive]
output_folder = "/srv/archive"

[supervisor]
tick_delay = "250ms"

[server]
tags = ["edge", "lab"]
`)

	opts := &daemonOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.UpstreamHost != "10.0.0.5" {
		t.Errorf("UpstreamHost = %q, want 10.0.0.5", opts.UpstreamHost)
	}
	if opts.UpstreamPort != 9100 {
		t.Errorf("UpstreamPort = %d, want 9100", opts.UpstreamPort)
	}
	if opts.OutputFolder != "/srv/archive" {
		t.Errorf("OutputFolder = %q, want /srv/archive", opts.OutputFolder)
	}
	if opts.TickDelay != "250ms" {
		t.Errorf("TickDelay = %q, want 250ms", opts.TickDelay)
	}
	if !opts.Debug {
		t.Error("Debug = false, want true")
	}
	if want := []string{"edge", "lab"}; !reflect.DeepEqual(opts.Tags, want) {
		t.Errorf("Tags = %v, want %v", opts.Tags, want)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SHEPHERD_UPSTREAM_HOST", "192.168.1.20")
	t.Setenv("SHEPHERD_UPSTREAM_PORT", "9200")
	t.Setenv("SHEPHERD_DEBUG", "true")
	t.Setenv("SHEPHERD_TAGS", "a, b ,c")

	opts := &daemonOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.UpstreamHost != "192.168.1.20" {
		t.Errorf("UpstreamHost = %q, want 192.168.1.20", opts.UpstreamHost)
	}
	if opts.UpstreamPort != 9200 {
		t.Errorf("UpstreamPort = %d, want 9200", opts.UpstreamPort)
	}
	if !opts.Debug {
		t.Error("Debug = false, want true")
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(opts.Tags, want) {
		t.Errorf("Tags = %v, want %v", opts.Tags, want)
	}
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	path := writeTempConfig(t, `
[upstream]
host = "from-file"
port = 9100
`)
	t.Setenv("SHEPHERD_UPSTREAM_HOST", "from-env")

	opts := &daemonOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.UpstreamHost != "from-env" {
		t.Errorf("UpstreamHost = %q, want env override", opts.UpstreamHost)
	}
	// File value survives where no env var competes
	if opts.UpstreamPort != 9100 {
		t.Errorf("UpstreamPort = %d, want 9100 from file", opts.UpstreamPort)
	}
}

func TestLoadConfigCLIFlagBeatsFileAndEnv(t *testing.T) {
	path := writeTempConfig(t, `
[upstream]
host = "from-file"
port = 9100
`)
	t.Setenv("SHEPHERD_UPSTREAM_HOST", "from-env")

	cmd := &cobra.Command{Use: "shepherd"}
	cmd.Flags().String("upstream-host", "127.0.0.1", "")
	cmd.Flags().Int("upstream-port", 9999, "")
	if err := cmd.Flags().Set("upstream-host", "from-cli"); err != nil {
		t.Fatal(err)
	}

	// The flag framework has already written the CLI value into the field;
	// the loader must leave it alone.
	opts := &daemonOptions{Config: path, UpstreamHost: "from-cli"}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.UpstreamHost != "from-cli" {
		t.Errorf("UpstreamHost = %q, want CLI value preserved", opts.UpstreamHost)
	}
	// Unset flags still take file values
	if opts.UpstreamPort != 9100 {
		t.Errorf("UpstreamPort = %d, want 9100 from file", opts.UpstreamPort)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &daemonOptions{Config: filepath.Join(t.TempDir(), "absent.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
}

func TestLoadConfigBrokenTOML(t *testing.T) {
	path := writeTempConfig(t, "[upstream\nnot toml")
	opts := &daemonOptions{Config: path}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("want parse error for broken TOML")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"supervisor": map[string]any{
			"pool": map[string]any{
				"size": int64(8),
			},
			"tick_delay": "100ms",
		},
		"debug": true,
	}

	tests := []struct {
		path string
		want any
	}{
		{"debug", true},
		{"supervisor.tick_delay", "100ms"},
		{"supervisor.pool.size", int64(8)},
		{"missing", nil},
		{"supervisor.missing", nil},
		{"debug.not_a_table", nil},
	}

	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetFieldValue(t *testing.T) {
	var target struct {
		S     string
		B     bool
		N     int
		Items []string
	}
	v := reflect.ValueOf(&target).Elem()

	setFieldValue(v.FieldByName("S"), "hello")
	setFieldValue(v.FieldByName("B"), true)
	setFieldValue(v.FieldByName("N"), int64(42))
	setFieldValue(v.FieldByName("Items"), []any{"x", "y"})

	if target.S != "hello" || !target.B || target.N != 42 {
		t.Errorf("scalars = %q/%v/%d, want hello/true/42", target.S, target.B, target.N)
	}
	if want := []string{"x", "y"}; !reflect.DeepEqual(target.Items, want) {
		t.Errorf("Items = %v, want %v", target.Items, want)
	}

	// Mismatched types leave the field alone
	setFieldValue(v.FieldByName("N"), "not a number")
	if target.N != 42 {
		t.Errorf("N changed to %d on type mismatch", target.N)
	}
}

func TestSetFieldValueFromString(t *testing.T) {
	var target struct {
		S     string
		B     bool
		N     int
		Items []string
	}
	v := reflect.ValueOf(&target).Elem()

	setFieldValueFromString(v.FieldByName("S"), "hello")
	setFieldValueFromString(v.FieldByName("B"), "true")
	setFieldValueFromString(v.FieldByName("N"), "123")
	setFieldValueFromString(v.FieldByName("Items"), " a , b ,c")

	if target.S != "hello" || !target.B || target.N != 123 {
		t.Errorf("scalars = %q/%v/%d, want hello/true/123", target.S, target.B, target.N)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(target.Items, want) {
		t.Errorf("Items = %v, want %v", target.Items, want)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Port", "port"},
		{"LoggingLevel", "logging-level"},
		{"UpstreamHost", "upstream-host"},
	}
	for _, tt := range tests {
		if got := fieldNameToFlag(tt.in); got != tt.want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTempConfig(t, `
[logging]
level = "warn"
format = "json"
supervisor = "debug"
status = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	want := map[string]string{"supervisor": "debug", "status": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %q/%q, want info/text", cfg.Level, cfg.Format)
	}
	if len(cfg.Modules) != 0 {
		t.Errorf("Modules = %v, want empty", cfg.Modules)
	}
}
