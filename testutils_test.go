package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"regindex/artifact"
)

// binaryPath holds the path to the compiled regindex binary
var binaryPath string

const indexURL = "https://example.com/index"

// runCommand runs the regindex binary with given args in a directory and returns output and error
func runCommand(t *testing.T, dir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = dir
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err = cmd.Run()
	return out.String(), errOut.String(), err
}

// checkOutput verifies the command output and exit code
func checkOutput(t *testing.T, stdout, stderr, expectedOutput string, err error, expectError bool, expectedExitCode int) {
	t.Helper()
	if expectError {
		if err == nil {
			t.Fatalf("Expected an error, got none (stdout: %q, stderr: %q)", stdout, stderr)
		}
		if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() != expectedExitCode {
			t.Errorf("Expected exit code %d, got %v", expectedExitCode, err)
		}
	} else {
		if err != nil {
			t.Fatalf("Expected no error, got %v (stderr: %q)", err, stderr)
		}
	}
	if stdout != expectedOutput {
		t.Errorf("Expected output %q, got %q (stderr: %q)", expectedOutput, stdout, stderr)
	}
}

// checkError verifies that the command failed with exit code 1 and the given message
func checkError(t *testing.T, stdout, stderr string, err error, message string) {
	t.Helper()
	checkOutput(t, stdout, stderr, "", err, true, 1)
	if !strings.Contains(stderr, message) {
		t.Errorf("Expected stderr to contain %q, got %q", message, stderr)
	}
}

// setupTestEnv points HOME at a temp dir with a git identity and clears REGINDEX_* settings
func setupTestEnv(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, ".config"))
	for _, k := range []string{
		"GIT_AUTHOR_NAME", "GIT_AUTHOR_EMAIL", "GIT_COMMITTER_NAME", "GIT_COMMITTER_EMAIL",
		"REGINDEX_INDEX", "REGINDEX_INDEX_URL", "REGINDEX_LOG_LEVEL", "REGINDEX_CRATES", "REGINDEX_TOKEN",
	} {
		t.Setenv(k, "")
	}
	configContent := `[user]
	name = testuser
	email = testuser@git.com
`
	if err := os.WriteFile(filepath.Join(tempDir, ".gitconfig"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create git config: %v", err)
	}
	return tempDir
}

// setupIndex creates an index with regindex init and returns its path
func setupIndex(t *testing.T, tempDir string) string {
	t.Helper()
	indexPath := filepath.Join(tempDir, "index")
	stdout, stderr, err := runCommand(t, tempDir, "init", "--index", indexPath, "--dl", "file://"+filepath.Join(tempDir, "crates", "{crate}", "{crate}-{version}.crate"))
	checkOutput(t, stdout, stderr, fmt.Sprintf("Index created at `%s`.\n", indexPath), err, false, 0)
	return indexPath
}

// packCrate writes name-version.crate holding a manifest with the given dependency lines
// and returns its path and checksum
func packCrate(t *testing.T, dir, name, version string, deps ...string) (string, string) {
	t.Helper()
	manifest := fmt.Sprintf("[package]\nname = %q\nversion = %q\n", name, version)
	if len(deps) > 0 {
		manifest += "\n[dependencies]\n" + strings.Join(deps, "\n") + "\n"
	}
	prefix := name + "-" + version
	var buf bytes.Buffer
	if err := artifact.WriteArchive(&buf, prefix, map[string][]byte{
		"Cargo.toml": []byte(manifest),
		"src/lib.rs": []byte("// " + prefix + "\n"),
	}); err != nil {
		t.Fatalf("Failed to pack %s: %v", prefix, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	cratePath := filepath.Join(dir, prefix+".crate")
	if err := os.WriteFile(cratePath, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", cratePath, err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return cratePath, hex.EncodeToString(sum[:])
}

// addCrate packs and publishes a crate, uploading it next to the index
func addCrate(t *testing.T, tempDir, indexPath, name, version string, deps ...string) string {
	t.Helper()
	cratePath, cksum := packCrate(t, filepath.Join(tempDir, "build"), name, version, deps...)
	stdout, stderr, err := runCommand(t, tempDir, "add", "--index", indexPath, "--index-url", indexURL,
		"--crate", cratePath, "--upload", filepath.Join(tempDir, "crates", "{crate}"))
	checkOutput(t, stdout, stderr, fmt.Sprintf("%s:%s successfully added!\n", name, version), err, false, 0)
	return cksum
}

// recordLine is the index line of a package without dependencies
func recordLine(name, version, cksum string, yanked bool) string {
	return fmt.Sprintf(`{"name":%q,"vers":%q,"deps":[],"features":{},"cksum":%q,"yanked":%t,"links":null}`, name, version, cksum, yanked)
}
