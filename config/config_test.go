// ABOUTME: Tests for configuration loading: defaults, YAML overlay, environment overrides, and validation.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowcanvas.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := load("", env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults changed (-want +got):\n%s", diff)
	}
	if cfg.Addr != ":2389" || cfg.Generation.Ticks != 5 || cfg.History.Limit != 50 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestYAMLOverlay(t *testing.T) {
	path := writeFile(t, `
addr: ":9000"
log:
  level: debug
generation:
  ticks: 3
  tickInterval: 250ms
storage:
  driver: sqlite
  path: /tmp/fc.db
`)
	cfg, err := load(path, env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Log.Level != "debug" {
		t.Errorf("unexpected top-level %+v", cfg)
	}
	if cfg.Generation.Ticks != 3 || cfg.Generation.TickInterval != 250*time.Millisecond {
		t.Errorf("unexpected generation %+v", cfg.Generation)
	}
	if cfg.Generation.Generator != GeneratorSimulated {
		t.Errorf("unset fields keep defaults, got %q", cfg.Generation.Generator)
	}
	if cfg.Storage.Driver != StorageSqlite || cfg.Storage.Path != "/tmp/fc.db" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "addr: \":9000\"\n")
	cfg, err := load(path, env(map[string]string{
		"FLOWCANVAS_ADDR":            ":7000",
		"FLOWCANVAS_STORAGE_DRIVER":  "redis",
		"FLOWCANVAS_REDIS_ADDR":      "localhost:6379",
		"FLOWCANVAS_GENERATOR":       "openai",
		"OPENAI_API_KEY":             "sk-test",
		"OPENAI_BASE_URL":            "http://localhost:8080/v1",
		"FLOWCANVAS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
		"FLOWCANVAS_DEV":             "true",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Storage.Driver != StorageRedis || cfg.Storage.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Generation.Generator != GeneratorOpenAI || cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("unexpected generator config %+v %+v", cfg.Generation, cfg.OpenAI)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins); diff != "" {
		t.Errorf("origins (-want +got):\n%s", diff)
	}
	if !cfg.Log.Development {
		t.Error("expected development logging")
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{name: "bad log level", env: map[string]string{"FLOWCANVAS_LOG_LEVEL": "loud"}},
		{name: "unknown driver", env: map[string]string{"FLOWCANVAS_STORAGE_DRIVER": "s3"}},
		{name: "redis without addr", env: map[string]string{"FLOWCANVAS_STORAGE_DRIVER": "redis"}},
		{name: "openai without key", env: map[string]string{"FLOWCANVAS_GENERATOR": "openai"}},
		{name: "bad base url", env: map[string]string{"OPENAI_BASE_URL": "not a url"}},
		{name: "bad dev flag", env: map[string]string{"FLOWCANVAS_DEV": "sometimes"}},
		{name: "zero ticks", yaml: "generation:\n  ticks: 0\n"},
		{name: "empty file path", yaml: "storage:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, tt.yaml)
			}
			_, err := load(path, env(tt.env))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestMissingAndMalformedFile(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil)); err == nil {
		t.Error("an explicit missing file must fail")
	}
	if _, err := load(writeFile(t, "addr: [\n"), env(nil)); err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("malformed YAML must be a parse error, got %v", err)
	}
}
