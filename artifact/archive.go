package artifact

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ManifestName is the manifest file at the root of every archive.
const ManifestName = "Cargo.toml"

// ReadManifest returns the manifest packed in the .crate archive at cratePath.
// Every entry must live under the "name-version/" directory named after the file.
func ReadManifest(cratePath string) ([]byte, error) {
	f, err := os.Open(cratePath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open `%s`.", cratePath)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read archive `%s`.", cratePath)
	}
	defer gz.Close()

	prefix := strings.TrimSuffix(filepath.Base(cratePath), ".crate")
	var manifest []byte
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "Failed to iterate over archive.")
		}
		name := path.Clean(hdr.Name)
		if name != prefix && !strings.HasPrefix(name, prefix+"/") {
			return nil, errors.Errorf("Expected .crate file to contain entries rooted in `%s` directory, found `%s`.", prefix, hdr.Name)
		}
		if name == prefix+"/"+ManifestName {
			if manifest, err = io.ReadAll(tr); err != nil {
				return nil, errors.Wrapf(err, "Failed to unpack entry at `%s`.", hdr.Name)
			}
		}
	}
	if manifest == nil {
		return nil, errors.Errorf("Could not find `%s` in `%s`.", ManifestName, cratePath)
	}
	return manifest, nil
}

// WriteArchive writes a gzipped tar with files placed under prefix/, in name order.
func WriteArchive(w io.Writer, prefix string, files map[string][]byte) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data := files[name]
		hdr := &tar.Header{
			Name:     prefix + "/" + name,
			Mode:     0644,
			Size:     int64(len(data)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return errors.Wrapf(err, "failed to write header for `%s`", name)
		}
		if _, err := tw.Write(data); err != nil {
			return errors.Wrapf(err, "failed to write `%s`", name)
		}
	}
	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "failed to finish archive")
	}
	return errors.Wrap(gz.Close(), "failed to finish archive")
}
