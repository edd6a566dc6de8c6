package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/mindboggle123/dag/testutil"
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/workflow"
)

func TestParseArgsDefaults(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := parseArgs([]string{"--id", "arno", "/data/arno.nii.gz"}, &out)
	if err != nil || exit {
		t.Fatalf("parseArgs() = %v, %v", exit, err)
	}
	if cfg.Image != "/data/arno.nii.gz" || cfg.ID != "arno" {
		t.Errorf("image=%q id=%q", cfg.Image, cfg.ID)
	}
	if cfg.Out != workflow.DefaultOut || cfg.Working != workflow.DefaultWorking || cfg.Template != workflow.DefaultTemplate {
		t.Errorf("directories = %q %q %q", cfg.Out, cfg.Working, cfg.Template)
	}
	if cfg.Plugin != "sequential" || cfg.ANTsSeg != "quick" || cfg.FSOpenMP != 1 || cfg.MBNumThreads != 1 {
		t.Errorf("defaults = %+v", cfg.Options)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p := cfg.Pipeline(); p.ANTs.Seg != workflow.SegQuick || p.MaxParallel() != 1 || cfg.Name != serviceName {
		t.Errorf("pipeline = %+v", p)
	}
}

func TestParseArgsFlags(t *testing.T) {
	args := []string{
		"--id", "arno", "--out", "/out", "--skip_ants",
		"--plugin", "MultiProc", "--plugin_args", "n_procs=4",
		"--fs_T2image", "/data/t2.nii.gz", "--fs_flags", "-3T", "--fs_flags=-no-isrunning",
		"--ants_seg", "fusion", "--ants_segN", "5", "--prov",
		"/data/arno.nii.gz",
	}
	cfg, _, err := parseArgs(args, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	o := cfg.Options
	if o.Out != "/out" || !o.SkipANTs || o.SkipFreeSurfer || !o.Prov {
		t.Errorf("options = %+v", o)
	}
	if o.FST2Image != "/data/t2.nii.gz" || strings.Join(o.FSFlags, " ") != "-3T -no-isrunning" {
		t.Errorf("freesurfer options = %q %q", o.FST2Image, o.FSFlags)
	}
	if o.ANTsSeg != "fusion" || o.ANTsSegN != 5 {
		t.Errorf("labeling = %s/%d", o.ANTsSeg, o.ANTsSegN)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if p := cfg.Pipeline(); p.Plugin != workflow.PluginMultiProc || p.MaxParallel() != 4 {
		t.Errorf("plugin = %s max=%d", p.Plugin, p.MaxParallel())
	}
}

func TestParseArgsExitsEarly(t *testing.T) {
	for _, args := range [][]string{{"--version"}, {"--help"}, {"-h"}} {
		var out bytes.Buffer
		cfg, exit, err := parseArgs(args, &out)
		if err != nil || !exit || cfg != nil {
			t.Errorf("parseArgs(%v) = %v, %v, %v", args, cfg, exit, err)
		}
		if out.Len() == 0 {
			t.Errorf("parseArgs(%v) printed nothing", args)
		}
	}

	var out bytes.Buffer
	_, _, _ = parseArgs([]string{"--version"}, &out)
	if !strings.HasPrefix(out.String(), serviceName+" ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestParseArgsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subject.yml")
	yaml := `id: bert
ants_seg: fusion
mb_num_threads: 3
fs_flags: ["-3T"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := parseArgs([]string{"--config", path, "--mb_num_threads", "5", "/data/bert.nii.gz"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ID != "bert" || cfg.ANTsSeg != "fusion" {
		t.Errorf("file values not loaded: %+v", cfg.Options)
	}
	if cfg.MBNumThreads != 5 {
		t.Errorf("mb_num_threads = %d, explicit flag should win", cfg.MBNumThreads)
	}
	if cfg.Out != workflow.DefaultOut {
		t.Errorf("out = %s", cfg.Out)
	}
	if cfg.Logging.Level != "debug" || len(cfg.FSFlags) != 1 {
		t.Errorf("logging=%q fs_flags=%q", cfg.Logging.Level, cfg.FSFlags)
	}
}

func TestParseArgsEnvironment(t *testing.T) {
	t.Setenv("MINDBOGGLE_ID", "env-subject")
	t.Setenv("MINDBOGGLE_ANTS_NUM_THREADS", "6")
	t.Setenv("ANTS_NUM_THREADS", "9")

	cfg, _, err := parseArgs([]string{"/data/x.nii.gz"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ID != "env-subject" || cfg.ANTsNumThreads != 6 {
		t.Errorf("id=%q ants_num_threads=%d", cfg.ID, cfg.ANTsNumThreads)
	}

	cfg, _, err = parseArgs([]string{"--id", "flag-subject", "/data/x.nii.gz"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ID != "flag-subject" {
		t.Errorf("id = %q, explicit flag should win over the environment", cfg.ID)
	}
}

func TestParseArgsRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--id", "arno", "--nope", "x.nii.gz"}},
		{"bad int", []string{"--fs_openmp", "many", "x.nii.gz"}},
		{"two images", []string{"--id", "arno", "a.nii.gz", "b.nii.gz"}},
		{"missing config file", []string{"--config", "/does/not/exist.yml", "x.nii.gz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseArgs(tt.args, &bytes.Buffer{})
			if errors.ExitCode(err) != errors.ExitUsage {
				t.Errorf("parseArgs() error = %v, want usage error", err)
			}
		})
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing id", []string{"x.nii.gz"}, "id is required"},
		{"missing image", []string{"--id", "arno"}, "image is required"},
		{"bad plugin args", []string{"--id", "arno", "--plugin_args", "n_procs=0", "x.nii.gz"}, "n_procs"},
		{"bad labeling", []string{"--id", "arno", "--ants_seg", "majority", "x.nii.gz"}, "quick, fusion"},
		{"bad fs flag", []string{"--id", "arno", "--fs_flags", "3T", "x.nii.gz"}, "fs_flags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := run(context.Background(), tt.args, &bytes.Buffer{}, &stderr)
			if code != errors.ExitUsage {
				t.Errorf("exit code = %d, want %d (%s)", code, errors.ExitUsage, stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.want)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	if code := run(context.Background(), []string{"--version"}, &stdout, &bytes.Buffer{}); code != 0 {
		t.Errorf("exit code = %d", code)
	}
	if stdout.Len() == 0 {
		t.Error("no version printed")
	}
}

var allTools = []string{
	"recon-all", "antsCorticalThickness.sh", "antsRegistration", "antsApplyTransforms",
	"ThresholdImage", "ImageMath", "LabelGeometryMeasures", "antsJointFusion", "mindboggle",
}

func runArgs(root string, extra ...string) []string {
	args := []string{
		"--id", "arno",
		"--out", filepath.Join(root, "out"),
		"--working", filepath.Join(root, "working"),
		"--template", filepath.Join(root, "template"),
		"--log_level", "error",
	}
	args = append(args, extra...)
	return append(args, filepath.Join(root, "arno.nii.gz"))
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunCompletesWithFakeTools(t *testing.T) {
	tools := testutil.InstallFakeTools(t, allTools...)
	root := t.TempDir()
	out := filepath.Join(root, "out")
	touch(t,
		filepath.Join(root, "arno.nii.gz"),
		filepath.Join(out, "freesurfer_subjects", "arno", "mri", "orig.mgz"),
		filepath.Join(out, "ants_subjects", "arno", "antsBrainSegmentation.nii.gz"),
	)

	var stderr bytes.Buffer
	code := run(context.Background(), runArgs(root, "--mb_num_threads", "4"), &bytes.Buffer{}, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "completed=7") {
		t.Errorf("summary:\n%s", stderr.String())
	}

	calls := tools.CallsTo(t, "mindboggle")
	if len(calls) != 1 {
		t.Fatalf("mindboggle calls = %v", calls)
	}
	for _, want := range []string{"--ants " + filepath.Join(out, "ants_subjects", "arno", "antsBrainSegmentation.nii.gz"), "n_procs=4"} {
		if !strings.Contains(calls[0], want) {
			t.Errorf("mindboggle call %q does not contain %q", calls[0], want)
		}
	}
	for _, dir := range []string{"freesurfer_subjects", "ants_subjects", "mindboggled"} {
		if info, err := os.Stat(filepath.Join(out, dir)); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}

func TestRunFailsWithoutFreeSurferSubject(t *testing.T) {
	tools := testutil.InstallFakeTools(t, allTools...)
	root := t.TempDir()
	touch(t, filepath.Join(root, "arno.nii.gz"))

	var stderr bytes.Buffer
	code := run(context.Background(), runArgs(root, "--skip_freesurfer"), &bytes.Buffer{}, &stderr)
	if code != errors.ExitFailure {
		t.Fatalf("exit code = %d\n%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "mindboggle (failed") {
		t.Errorf("summary:\n%s", stderr.String())
	}
	if calls := tools.CallsTo(t, "mindboggle"); len(calls) != 0 {
		t.Errorf("mindboggle launched: %v", calls)
	}
	if calls := tools.CallsTo(t, "recon-all"); len(calls) != 0 {
		t.Errorf("recon-all launched although skipped: %v", calls)
	}
	reports, err := filepath.Glob(filepath.Join(root, "working", "crash", "crash-*-mindboggle-*.txt"))
	if err != nil || len(reports) != 1 {
		t.Errorf("crash reports = %v (%v)", reports, err)
	}
}
