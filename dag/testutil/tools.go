package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FakeTools is a directory of stand-in executables prepended to PATH.
type FakeTools struct {
	Dir string
	Log string
}

// InstallFakeTools writes one shell script per name into a temp directory and
// prepends it to PATH for the duration of the test. Every invocation appends
// "<name> <args...>" to the log. A script exits with the code found in
// <dir>/<name>.exit when that file exists, after printing <dir>/<name>.stderr
// to stderr.
func InstallFakeTools(t testing.TB, names ...string) *FakeTools {
	t.Helper()
	dir := t.TempDir()
	ft := &FakeTools{Dir: dir, Log: filepath.Join(dir, "calls.log")}

	for _, name := range names {
		script := fmt.Sprintf(`#!/bin/sh
echo "%[1]s $*" >> %[2]q
if [ -f %[3]q ]; then cat %[3]q >&2; fi
if [ -f %[4]q ]; then exit "$(cat %[4]q)"; fi
exit 0
`, name, ft.Log, filepath.Join(dir, name+".stderr"), filepath.Join(dir, name+".exit"))
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
			t.Fatalf("writing fake %s: %v", name, err)
		}
	}

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return ft
}

// Fail makes the named tool exit with code after printing stderr.
func (f *FakeTools) Fail(t testing.TB, name string, code int, stderr string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.Dir, name+".stderr"), []byte(stderr), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.Dir, name+".exit"), []byte(fmt.Sprint(code)), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Calls returns the logged invocations, one per line.
func (f *FakeTools) Calls(t testing.TB) []string {
	t.Helper()
	data, err := os.ReadFile(f.Log)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("reading fake tool log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// CallsTo returns the logged invocations of one tool.
func (f *FakeTools) CallsTo(t testing.TB, name string) []string {
	t.Helper()
	var out []string
	for _, c := range f.Calls(t) {
		if c == name || strings.HasPrefix(c, name+" ") {
			out = append(out, c)
		}
	}
	return out
}
