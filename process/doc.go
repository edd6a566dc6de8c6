// Package process runs external tools as subprocesses.
//
// Every command runs in its own process group so cancellation reaches the
// whole tree: SIGTERM first, SIGKILL once the grace period expires. Non-zero
// exits and launch failures are reported as EXTERNAL_PROCESS_ERROR
// application errors carrying the exit code and the tail of stderr.
package process
