package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stevegt/readercomp"
)

func TestMain(m *testing.M) {
	tempDir, err := os.MkdirTemp("", "regindex-bin")
	if err != nil {
		println("Failed to create temp dir:", err.Error())
		os.Exit(1)
	}
	binaryPath = filepath.Join(tempDir, "regindex")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		println("Failed to build regindex binary:", err.Error())
		os.Exit(1)
	}

	exitCode := m.Run()
	os.RemoveAll(tempDir)
	os.Exit(exitCode)
}

// localDep declares a dependency on a package of the index under test
func localDep(name, req string) string {
	return fmt.Sprintf("%s = { version = %q, registry-index = %q }", name, req, indexURL)
}

// sameAsShard reports whether output is byte-for-byte the given shard file
func sameAsShard(t *testing.T, indexPath, shard, output string) bool {
	t.Helper()
	f, err := os.Open(filepath.Join(indexPath, filepath.FromSlash(shard)))
	if err != nil {
		t.Fatalf("Failed to open shard %s: %v", shard, err)
	}
	defer f.Close()
	same, err := readercomp.Equal(f, strings.NewReader(output), 4096)
	if err != nil {
		t.Fatalf("Failed to compare shard %s: %v", shard, err)
	}
	return same
}

func TestVersion(t *testing.T) {
	tempDir := t.TempDir()
	stdout, _, err := runCommand(t, tempDir, "--version")
	checkOutput(t, stdout, "", "regindex version 0.1.0\n", err, false, 0)
}

func TestInit(t *testing.T) {
	tempDir := setupTestEnv(t)
	indexPath := filepath.Join(tempDir, "index")

	stdout, stderr, err := runCommand(t, tempDir, "init", "--index", indexPath, "--dl", "https://example.com/dl", "--api", "https://example.com/")
	checkOutput(t, stdout, stderr, fmt.Sprintf("Index created at `%s`.\n", indexPath), err, false, 0)

	data, err := os.ReadFile(filepath.Join(indexPath, "config.json"))
	if err != nil {
		t.Fatalf("Failed to read config.json: %v", err)
	}
	expected := "{\n  \"dl\": \"https://example.com/dl\",\n  \"api\": \"https://example.com\"\n}"
	if string(data) != expected {
		t.Errorf("Expected config.json %q, got %q", expected, data)
	}
	if _, err := os.Stat(filepath.Join(indexPath, ".git")); err != nil {
		t.Errorf("Expected a git repository in %s: %v", indexPath, err)
	}

	stdout, stderr, err = runCommand(t, tempDir, "init", "--index", indexPath, "--dl", "https://example.com/dl")
	checkError(t, stdout, stderr, err, fmt.Sprintf("Path `%s` already exists. This command requires a non-existent path to create.", indexPath))
}

func TestInitMissingFlags(t *testing.T) {
	tempDir := setupTestEnv(t)
	stdout, stderr, err := runCommand(t, tempDir, "init", "--index", filepath.Join(tempDir, "index"))
	checkError(t, stdout, stderr, err, `"dl" not set`)
	stdout, stderr, err = runCommand(t, tempDir, "init", "--dl", "https://example.com/dl")
	checkError(t, stdout, stderr, err, `"index" not set`)
}

func TestPublishYankListFlow(t *testing.T) {
	tempDir := setupTestEnv(t)
	indexPath := setupIndex(t, tempDir)

	cksum := addCrate(t, tempDir, indexPath, "foo", "0.1.0")
	stdout, stderr, err := runCommand(t, tempDir, "list", "--index", indexPath, "--package", "foo")
	checkOutput(t, stdout, stderr, recordLine("foo", "0.1.0", cksum, false)+"\n", err, false, 0)

	// A dependency on an unpublished package is rejected
	cratePath, _ := packCrate(t, filepath.Join(tempDir, "build2"), "foo", "0.1.0", localDep("bar", "0.1"))
	stdout, stderr, err = runCommand(t, tempDir, "add", "--index", indexPath, "--index-url", indexURL, "--crate", cratePath, "--force")
	checkError(t, stdout, stderr, err, "Package `foo` dependency `bar:^0.1` not found in index.")

	addCrate(t, tempDir, indexPath, "bar", "0.1.0")
	stdout, stderr, err = runCommand(t, tempDir, "add", "--index", indexPath, "--index-url", indexURL, "--crate", cratePath, "--force")
	checkOutput(t, stdout, stderr, "foo:0.1.0 successfully added!\n", err, false, 0)

	stdout, stderr, err = runCommand(t, tempDir, "add", "--index", indexPath, "--index-url", indexURL, "--crate", cratePath)
	checkError(t, stdout, stderr, err, "Package `foo` version `0.1.0` is already in the index.")

	stdout, stderr, err = runCommand(t, tempDir, "yank", "--index", indexPath, "-p", "foo", "--version", "0.1.0")
	checkOutput(t, stdout, stderr, "foo:0.1.0 yanked!\n", err, false, 0)
	stdout, stderr, err = runCommand(t, tempDir, "yank", "--index", indexPath, "-p", "foo", "--version", "0.1.0")
	checkError(t, stdout, stderr, err, "`foo:0.1.0` is already yanked!")

	stdout, stderr, err = runCommand(t, tempDir, "list", "--index", indexPath, "--package", "foo", "--version", "^0.1")
	if err != nil {
		t.Fatalf("list failed: %v (stderr: %q)", err, stderr)
	}
	if !strings.Contains(stdout, `"yanked":true`) || !strings.Contains(stdout, `"name":"bar","req":"^0.1"`) {
		t.Errorf("Unexpected list output %q", stdout)
	}
	if !sameAsShard(t, indexPath, "3/f/foo", stdout) {
		t.Errorf("list output differs from the shard file")
	}

	stdout, stderr, err = runCommand(t, tempDir, "unyank", "--index", indexPath, "-p", "foo", "--version", "0.1.0")
	checkOutput(t, stdout, stderr, "foo:0.1.0 unyanked!\n", err, false, 0)
	stdout, stderr, err = runCommand(t, tempDir, "unyank", "--index", indexPath, "-p", "foo", "--version", "0.1.0")
	checkError(t, stdout, stderr, err, "`foo:0.1.0` is not yanked!")
	stdout, stderr, err = runCommand(t, tempDir, "yank", "--index", indexPath, "-p", "foo", "--version", "0.2.0")
	checkError(t, stdout, stderr, err, "Version `0.2.0` for package `foo` not found.")
	stdout, stderr, err = runCommand(t, tempDir, "yank", "--index", indexPath, "-p", "nope", "--version", "0.2.0")
	checkError(t, stdout, stderr, err, "Package `nope` is not in the index.")

	gitLog, err := exec.Command("git", "-C", indexPath, "log", "--format=%s").Output()
	if err == nil {
		expected := "Unyanking crate `foo:0.1.0`\nYanking crate `foo:0.1.0`\nUpdating crate 'foo#0.1.0'\nUpdating crate 'bar#0.1.0'\nUpdating crate 'foo#0.1.0'\nInitial commit\n"
		if string(gitLog) != expected {
			t.Errorf("Expected git history %q, got %q", expected, gitLog)
		}
	}
}

func TestListEmptyMessages(t *testing.T) {
	tempDir := setupTestEnv(t)
	indexPath := setupIndex(t, tempDir)

	stdout, stderr, err := runCommand(t, tempDir, "list", "--index", indexPath)
	checkError(t, stdout, stderr, err, "The index is empty!")

	addCrate(t, tempDir, indexPath, "foo", "0.1.0")
	tests := []struct {
		args    []string
		message string
	}{
		{[]string{"-p", "bar"}, "Package `bar` is not in the index."},
		{[]string{"-p", "foo", "--version", "^0.2"}, "No entries found for `foo` that match version `^0.2`."},
		{[]string{"--version", "^2"}, "No packages matching version requirement `^2` found."},
	}
	for _, tt := range tests {
		args := append([]string{"list", "--index", indexPath}, tt.args...)
		stdout, stderr, err := runCommand(t, tempDir, args...)
		checkError(t, stdout, stderr, err, tt.message)
	}
}

func TestListAllAndPURL(t *testing.T) {
	tempDir := setupTestEnv(t)
	indexPath := setupIndex(t, tempDir)
	fooSum := addCrate(t, tempDir, indexPath, "foo", "0.1.0")
	barSum := addCrate(t, tempDir, indexPath, "bar", "1.0.0")
	addCrate(t, tempDir, indexPath, "foo", "0.2.0")

	stdout, stderr, err := runCommand(t, tempDir, "list", "--index", indexPath, "--version", "<0.2")
	checkOutput(t, stdout, stderr, recordLine("foo", "0.1.0", fooSum, false)+"\n", err, false, 0)

	stdout, stderr, err = runCommand(t, tempDir, "list", "--index", indexPath, "--version", ">=0.1")
	if err != nil {
		t.Fatalf("list failed: %v (stderr: %q)", err, stderr)
	}
	if !strings.HasPrefix(stdout, recordLine("bar", "1.0.0", barSum, false)+"\n") {
		t.Errorf("Expected bar first in walk order, got %q", stdout)
	}

	stdout, stderr, err = runCommand(t, tempDir, "list", "--index", indexPath, "--purl")
	checkOutput(t, stdout, stderr, "pkg:cargo/bar@1.0.0\npkg:cargo/foo@0.1.0\npkg:cargo/foo@0.2.0\n", err, false, 0)
}

func TestMetadataMatchesIndex(t *testing.T) {
	tempDir := setupTestEnv(t)
	indexPath := setupIndex(t, tempDir)
	addCrate(t, tempDir, indexPath, "bar", "0.1.0")
	cratePath, _ := packCrate(t, filepath.Join(tempDir, "build"), "foo", "0.3.0",
		localDep("bar", "0.1"), `serde = "1.0"`, `baz = { version = "2", registry-index = "https://example.com/other" }`)

	metadata, stderr, err := runCommand(t, tempDir, "metadata", "--index-url", indexURL, "--crate", cratePath)
	if err != nil {
		t.Fatalf("metadata failed: %v (stderr: %q)", err, stderr)
	}
	for _, want := range []string{
		`{"name":"bar","req":"^0.1","features":[],"optional":false,"default_features":true,"target":null,"kind":"normal","registry":null,"package":null}`,
		`"registry":"https://example.com/other"`,
		`"registry":"https://github.com/rust-lang/crates.io-index"`,
	} {
		if !strings.Contains(metadata, want) {
			t.Errorf("Expected metadata to contain %s, got %s", want, metadata)
		}
	}

	recordPath := filepath.Join(tempDir, "foo.json")
	if err := os.WriteFile(recordPath, []byte(metadata), 0644); err != nil {
		t.Fatal(err)
	}
	stdout, stderr, err := runCommand(t, tempDir, "add", "--index", indexPath, "--record", recordPath)
	checkOutput(t, stdout, stderr, "foo:0.3.0 successfully added!\n", err, false, 0)
	if !sameAsShard(t, indexPath, "3/f/foo", metadata) {
		t.Errorf("Shard written from --record differs from metadata output")
	}
}

func TestValidate(t *testing.T) {
	tempDir := setupTestEnv(t)
	indexPath := setupIndex(t, tempDir)
	addCrate(t, tempDir, indexPath, "bar", "0.1.0")
	addCrate(t, tempDir, indexPath, "foo", "0.1.0", localDep("bar", "0.1"))

	crates := filepath.Join(tempDir, "crates", "{crate}")
	for _, args := range [][]string{
		{"validate", "--index", indexPath},
		{"validate", "--index", indexPath, "--crates", crates},
		{"validate", "--index", indexPath, "--download"},
	} {
		stdout, stderr, err := runCommand(t, tempDir, args...)
		checkOutput(t, stdout, stderr, "", err, false, 0)
	}

	// Break the archive of bar and leave a stray file in the index
	if err := os.WriteFile(filepath.Join(tempDir, "crates", "bar", "bar-0.1.0.crate"), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}
	stray := filepath.Join(indexPath, "zz", "zz", "foo")
	if err := os.MkdirAll(filepath.Dir(stray), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stray, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	metrics := filepath.Join(tempDir, "validate.prom")
	stdout, stderr, err := runCommand(t, tempDir, "validate", "--index", indexPath, "--crates", crates, "--metrics-file", metrics)
	checkError(t, stdout, stderr, err, "Found at least one error in the index.")
	for _, want := range []string{
		"Checksum did not match for package `bar:0.1.0`",
		fmt.Sprintf("File `%s` is not in the correct location.", stray),
	} {
		if !strings.Contains(stderr, want) {
			t.Errorf("Expected stderr to contain %q, got %q", want, stderr)
		}
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("Expected metrics file: %v", err)
	}
	if !strings.Contains(string(data), `regindex_validate_problems{kind="checksum_mismatch"} 1`) {
		t.Errorf("Unexpected metrics %s", data)
	}

	stdout, stderr, err = runCommand(t, tempDir, "validate", "--index", filepath.Join(tempDir, "missing"))
	checkError(t, stdout, stderr, err, "Index does not exist at")
}

func TestSettingsFromEnvironmentAndConfigFile(t *testing.T) {
	tempDir := setupTestEnv(t)
	indexPath := setupIndex(t, tempDir)
	cksum := addCrate(t, tempDir, indexPath, "foo", "0.1.0")
	expected := recordLine("foo", "0.1.0", cksum, false) + "\n"

	t.Setenv("REGINDEX_INDEX", indexPath)
	stdout, stderr, err := runCommand(t, tempDir, "list", "-p", "foo")
	checkOutput(t, stdout, stderr, expected, err, false, 0)
	t.Setenv("REGINDEX_INDEX", "")

	configPath := filepath.Join(tempDir, "regindex.toml")
	config := fmt.Sprintf("index = %q\nindex-url = %q\n\n[registries]\nother = \"https://example.com/other\"\n", indexPath, indexURL)
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	stdout, stderr, err = runCommand(t, tempDir, "list", "--config", configPath, "-p", "foo")
	checkOutput(t, stdout, stderr, expected, err, false, 0)

	cratePath, _ := packCrate(t, filepath.Join(tempDir, "build"), "baz", "0.1.0", `x = { version = "1", registry = "other" }`)
	stdout, stderr, err = runCommand(t, tempDir, "metadata", "--config", configPath, "--crate", cratePath)
	if err != nil {
		t.Fatalf("metadata failed: %v (stderr: %q)", err, stderr)
	}
	if !strings.Contains(stdout, `"registry":"https://example.com/other"`) {
		t.Errorf("Named registry not resolved from config: %s", stdout)
	}

	stdout, stderr, err = runCommand(t, tempDir, "list", "--config", configPath, "-p", "foo", "--log-level", "loud")
	checkError(t, stdout, stderr, err, "invalid log level")
}
