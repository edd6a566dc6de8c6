package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/kbukum/mindboggle123/errors"
)

type testConfig struct {
	ServiceConfig  `yaml:",inline" mapstructure:",squash"`
	ID             string `mapstructure:"id"`
	AntsNumThreads int    `mapstructure:"ants_num_threads"`
	AntsSeg        string `mapstructure:"ants_seg"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("id", "", "")
	fs.Int("ants_num_threads", 1, "")
	fs.String("ants_seg", "quick", "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid", ServiceConfig{Name: "svc"}, ""},
		{"missing name", ServiceConfig{}, "missing required setting: name"},
		{"bad log format", ServiceConfig{Name: "svc"}, "invalid configuration"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.ApplyDefaults()
			if tc.name == "bad log format" {
				tc.cfg.Logging.Format = "xml"
			}
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "mb.yml", `
name: mindboggle123
id: arno
ants_num_threads: 4
logging:
  level: debug
  format: json
`)

	var cfg testConfig
	if err := LoadConfig("mindboggle123", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "mindboggle123" || cfg.ID != "arno" || cfg.AntsNumThreads != 4 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("mindboggle123", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "mb.yml", "id: from-file\nants_num_threads: 2\nants_seg: fusion\n")

	t.Setenv("MINDBOGGLE_ANTS_NUM_THREADS", "6")
	t.Setenv("MINDBOGGLE_LOGGING_LEVEL", "warn")
	t.Setenv("ANTS_SEG", "ignored-without-prefix")

	var cfg testConfig
	err := LoadConfig("mindboggle123", &cfg,
		WithConfigFile(configPath),
		WithEnvPrefix("MINDBOGGLE_"),
		WithFlags(testFlags(t, "--id", "from-flag")),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ID != "from-flag" {
		t.Errorf("explicit flag should win, got id=%q", cfg.ID)
	}
	if cfg.AntsNumThreads != 6 {
		t.Errorf("env should beat file, got %d", cfg.AntsNumThreads)
	}
	if cfg.AntsSeg != "fusion" {
		t.Errorf("file should beat flag default, got %q", cfg.AntsSeg)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected nested env binding, got %q", cfg.Logging.Level)
	}
}

func TestLoadConfigFlagDefaults(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("mindboggle123", &cfg,
		WithFileSystem(&mockFS{files: map[string]bool{}}),
		WithFlags(testFlags(t)),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.AntsNumThreads != 1 || cfg.AntsSeg != "quick" {
		t.Errorf("expected flag defaults, got %+v", cfg)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/mindboggle123/config.yml": true,
		"./.env":                         true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("mindboggle123", LoaderConfig{})
	if files.ConfigFile != "./cmd/mindboggle123/config.yml" {
		t.Errorf("expected config file at ./cmd/mindboggle123/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}
}

func TestResolverPrefersServiceEnvFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./.env":               true,
		"./.env.mindboggle123": true,
	}}
	files := (&Resolver{FileSystem: fs}).ResolveFiles("mindboggle123", LoaderConfig{})
	if files.EnvFile != "./.env.mindboggle123" {
		t.Errorf("expected service env file, got %q", files.EnvFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("LOGGING_LEVEL")
	want := map[string]bool{"logging_level": true, "logging.level": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d variants, got %v", len(want), got)
	}
	for _, v := range got {
		if !want[v] {
			t.Errorf("unexpected variant %q", v)
		}
	}

	got = generateEnvKeyVariants("ANTS_NUM_THREADS")
	found := false
	for _, v := range got {
		if v == "ants_num_threads" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected flat variant in %v", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	WithEnvPrefix("mindboggle_")(&lc)
	if lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("unexpected loader config %+v", lc)
	}
	if lc.EnvPrefix != "MINDBOGGLE" {
		t.Errorf("expected normalised prefix, got %q", lc.EnvPrefix)
	}
}
