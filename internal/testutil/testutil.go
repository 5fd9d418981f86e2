// Package testutil provides shared skip helpers and audio assertions for
// tests.
//
// Each Require helper calls t.Skipf with a clear human-readable reason when
// the named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
//
// Typical usage:
//
//	func TestEncodeWithLame(t *testing.T) {
//	    testutil.RequireLame(t)
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RequireCommand skips the test unless the executable named by the
// environment variable env (or fallback when env is unset) is on PATH.
// It returns the resolved path.
func RequireCommand(tb testing.TB, env, fallback string) string {
	tb.Helper()

	exe := fallback
	if env != "" {
		if v := os.Getenv(env); v != "" {
			exe = v
		}
	}

	path, err := exec.LookPath(exe)
	if err != nil {
		if env != "" {
			tb.Skipf("%s not available (%q not in PATH); set %s to override", fallback, exe, env)
		} else {
			tb.Skipf("%s not available (%q not in PATH)", fallback, exe)
		}
		return ""
	}

	return path
}

// RequireLame skips the test if the lame encoder is not available.
func RequireLame(tb testing.TB) string {
	tb.Helper()
	return RequireCommand(tb, "NARRATE_ENCODER_LAME_PATH", "lame")
}

// RequireFFmpeg skips the test if ffmpeg is not available.
func RequireFFmpeg(tb testing.TB) string {
	tb.Helper()
	return RequireCommand(tb, "NARRATE_ENCODER_FFMPEG_PATH", "ffmpeg")
}

// RequirePocketTTS skips the test if the pocket-tts binary is not found in
// PATH or the path given by NARRATE_TTS_POCKET_CLI_PATH.
func RequirePocketTTS(tb testing.TB) string {
	tb.Helper()
	return RequireCommand(tb, "NARRATE_TTS_POCKET_CLI_PATH", "pocket-tts")
}
