package llm

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// cleanTmpDir is the temp directory handed to the claude CLI. A dedicated
// directory keeps editor socket files out of its view; the CLI crashes on
// them when --settings is passed.
var cleanTmpDir = filepath.Join(os.TempDir(), "mender-llm")

// SetCleanEnv copies the current environment into cmd and points TMPDIR at
// a clean directory.
func SetCleanEnv(cmd *exec.Cmd) {
	os.MkdirAll(cleanTmpDir, 0755)

	cmd.Env = os.Environ()
	for i, env := range cmd.Env {
		if strings.HasPrefix(env, "TMPDIR=") {
			cmd.Env[i] = "TMPDIR=" + cleanTmpDir
			return
		}
	}
	cmd.Env = append(cmd.Env, "TMPDIR="+cleanTmpDir)
}
