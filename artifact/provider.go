// Package artifact locates and reads the package archives an index refers to.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no artifact exists for a package version.
var ErrNotFound = errors.New("artifact not found")

// Ref identifies the artifact of one package version.
type Ref struct {
	Name     string
	Version  string
	Checksum string
}

// FileName is the conventional archive name, "name-version.crate".
func (r Ref) FileName() string {
	return fmt.Sprintf("%s-%s.crate", r.Name, r.Version)
}

// Provider opens artifacts. Location describes where Open looks, for messages.
type Provider interface {
	Location(ref Ref) string
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
}

// Checksum returns the lowercase hex SHA-256 of r.
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(err, "failed to hash artifact")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileChecksum hashes the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to open `%s`.", path)
	}
	defer f.Close()
	return Checksum(f)
}

// Dir finds artifacts in a local directory tree. Template may contain
// {crate} and {version}; the archive file name is appended to it.
type Dir struct {
	Template string
}

func (d Dir) Location(ref Ref) string {
	return filepath.Join(expandDir(d.Template, ref.Name, ref.Version), ref.FileName())
}

func (d Dir) Open(_ context.Context, ref Ref) (io.ReadCloser, error) {
	p := d.Location(ref)
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "Could not find crate file: %s", p)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open `%s`.", p)
	}
	return f, nil
}

// Upload copies the archive at src into the directory template, creating it
// as needed, and returns the destination path.
func Upload(src, template string, ref Ref) (string, error) {
	dir := expandDir(template, ref.Name, ref.Version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create upload directory `%s`", dir)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	in, err := os.Open(src)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to open `%s`.", src)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create `%s`", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", errors.Wrapf(err, "failed to copy `%s` to `%s`", src, dst)
	}
	return dst, errors.Wrapf(out.Close(), "failed to close `%s`", dst)
}

func expandDir(template, name, version string) string {
	return strings.NewReplacer("{crate}", name, "{version}", version).Replace(template)
}
