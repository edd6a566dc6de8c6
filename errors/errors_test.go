package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New(t *testing.T) {
	err := New(ErrCodeFilesystem, "disk full")
	if err.Code != ErrCodeFilesystem {
		t.Errorf("expected code %s, got %s", ErrCodeFilesystem, err.Code)
	}
	if err.Message != "disk full" {
		t.Errorf("expected message 'disk full', got %q", err.Message)
	}
	if err.Retryable {
		t.Error("FILESYSTEM_ERROR should not be retryable")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := Filesystem("mkdir", "/out", cause)
	got := err.Error()
	if !strings.Contains(got, "FILESYSTEM_ERROR") || !strings.Contains(got, "/out") {
		t.Errorf("unexpected error string %q", got)
	}
	if !strings.Contains(got, "permission denied") {
		t.Errorf("expected cause in error string, got %q", got)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestConfiguration(t *testing.T) {
	err := Configuration("ants_seg", "must be quick or fusion")
	if err.Code != ErrCodeConfiguration {
		t.Errorf("expected CONFIGURATION_ERROR, got %s", err.Code)
	}
	if err.Details["field"] != "ants_seg" {
		t.Errorf("expected field=ants_seg, got %v", err.Details["field"])
	}

	if want := "invalid configuration: ants_seg: must be quick or fusion"; err.Message != want {
		t.Errorf("expected message %q, got %q", want, err.Message)
	}

	noField := Configuration("", "bad")
	if _, ok := noField.Details["field"]; ok {
		t.Error("expected no field detail when field is empty")
	}
	if noField.Message != "invalid configuration: bad" {
		t.Errorf("unexpected message %q", noField.Message)
	}
}

func TestExternalProcess(t *testing.T) {
	err := ExternalProcess("recon-all", 3, nil)
	if err.Code != ErrCodeExternalProcess {
		t.Errorf("expected EXTERNAL_PROCESS_ERROR, got %s", err.Code)
	}
	if err.Details["exit_code"] != 3 {
		t.Errorf("expected exit_code=3, got %v", err.Details["exit_code"])
	}
	if err.Retryable {
		t.Error("external process errors are not retried")
	}
}

func TestMissingInput(t *testing.T) {
	err := MissingInput("mindboggle", "/out/freesurfer_subjects/arno")
	if err.Code != ErrCodeExternalProcess {
		t.Errorf("expected EXTERNAL_PROCESS_ERROR, got %s", err.Code)
	}
	if err.Details["missing_input"] != "/out/freesurfer_subjects/arno" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestHasCode(t *testing.T) {
	inner := GraphWiring("a", "b", "cycle")
	wrapped := fmt.Errorf("building graph: %w", inner)
	if !HasCode(wrapped, ErrCodeGraphWiring) {
		t.Error("expected wrapped error to carry GRAPH_WIRING_ERROR")
	}
	if HasCode(wrapped, ErrCodeFilesystem) {
		t.Error("did not expect FILESYSTEM_ERROR")
	}

	chained := Internal(ExternalProcess("sh", 1, nil))
	if !HasCode(chained, ErrCodeExternalProcess) {
		t.Error("expected code in cause chain")
	}
	if HasCode(stderrors.New("plain"), ErrCodeInternal) {
		t.Error("plain errors carry no code")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"configuration", Configuration("id", "bad"), ExitUsage},
		{"missing field", MissingField("id"), ExitUsage},
		{"external", ExternalProcess("mindboggle", 1, nil), ExitFailure},
		{"plain", stderrors.New("boom"), ExitFailure},
		{"wrapped configuration", fmt.Errorf("parse: %w", Configuration("x", "y")), ExitUsage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := Internal(nil).WithDetail("node", "recon-all").WithDetails(map[string]any{"attempt": 1})
	if err.Details["node"] != "recon-all" || err.Details["attempt"] != 1 {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestCanceledIsRetryable(t *testing.T) {
	if !Canceled(nil).Retryable {
		t.Error("canceled runs can be resumed")
	}
}
