package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/errors"
)

func TestProvisionIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig(t, nil)

	for i := 0; i < 2; i++ {
		if err := Provision(fs, cfg); err != nil {
			t.Fatalf("Provision #%d: %v", i+1, err)
		}
	}
	for _, dir := range cfg.Directories() {
		info, err := fs.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("%s is not a directory: %v", dir, err)
		}
	}
}

func TestProvisionOnDisk(t *testing.T) {
	cfg := testConfig(t, nil)
	fs := afero.NewOsFs()
	if err := Provision(fs, cfg); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(cfg.ANTsDir(), "keep")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Provision(fs, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("second Provision disturbed existing content: %v", err)
	}
}

func TestProvisionReportsFilesystemError(t *testing.T) {
	cfg := testConfig(t, nil)
	if err := os.WriteFile(cfg.Out, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := Provision(afero.NewOsFs(), cfg)
	if !errors.HasCode(err, errors.ErrCodeFilesystem) {
		t.Fatalf("Provision() error = %v, want filesystem error", err)
	}
	if appErr, _ := errors.AsAppError(err); appErr.Details["path"] != cfg.Out {
		t.Errorf("error names %v, want %s", appErr.Details["path"], cfg.Out)
	}
}

func TestProvisionReadOnlyFs(t *testing.T) {
	cfg := testConfig(t, nil)
	err := Provision(afero.NewReadOnlyFs(afero.NewMemMapFs()), cfg)
	if !errors.HasCode(err, errors.ErrCodeFilesystem) {
		t.Fatalf("Provision() error = %v, want filesystem error", err)
	}
}
