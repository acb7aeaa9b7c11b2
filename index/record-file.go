package index

import (
	"bytes"
	"os"
	"path/filepath"

	"regindex/types"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// recordFile is the in-memory copy of one shard file. Lines that are not
// modified are written back with their original bytes.
type recordFile struct {
	path    string
	rel     string
	exists  bool
	lines   [][]byte
	records []types.PackageRecord
}

func loadRecordFile(root, name string) (*recordFile, error) {
	f := &recordFile{
		path: shardFile(root, name),
		rel:  ShardPath(name),
	}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read `%s`", f.path)
	}
	f.exists = true
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rec, err := DecodeRecord(line)
		if err != nil {
			return nil, wrapError(ErrCorruptRecord, err, "Could not deserialize `%s` line %d:\n%s", f.path, i+1, line)
		}
		f.lines = append(f.lines, line)
		f.records = append(f.records, rec)
	}
	return f, nil
}

// find returns the positions of records with the same version, build metadata included.
func (f *recordFile) find(vers types.Version) []int {
	var found []int
	for i, rec := range f.records {
		if rec.Vers.Same(vers) {
			found = append(found, i)
		}
	}
	return found
}

func (f *recordFile) set(i int, rec types.PackageRecord) error {
	line, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	f.lines[i] = line
	f.records[i] = rec
	return nil
}

func (f *recordFile) add(rec types.PackageRecord) error {
	line, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	f.lines = append(f.lines, line)
	f.records = append(f.records, rec)
	return nil
}

// save replaces the shard file atomically so readers never see a partial file.
func (f *recordFile) save() error {
	var buf bytes.Buffer
	for _, line := range f.lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory `%s`", filepath.Dir(f.path))
	}
	if err := renameio.WriteFile(f.path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write `%s`", f.path)
	}
	f.exists = true
	return nil
}

// ReadRecords returns every record of a package in file order. A package
// without a shard file has no records.
func ReadRecords(root, name string) ([]types.PackageRecord, error) {
	f, err := loadRecordFile(root, name)
	if err != nil {
		return nil, err
	}
	return f.records, nil
}

// WriteRecords overwrites a package's shard file with records, one per line.
func WriteRecords(root, name string, records []types.PackageRecord) error {
	f := &recordFile{path: shardFile(root, name), rel: ShardPath(name)}
	for _, rec := range records {
		if err := f.add(rec); err != nil {
			return err
		}
	}
	return f.save()
}

// AppendRecord adds one record after the existing lines, leaving them untouched.
func AppendRecord(root, name string, rec types.PackageRecord) error {
	f, err := loadRecordFile(root, name)
	if err != nil {
		return err
	}
	if err := f.add(rec); err != nil {
		return err
	}
	return f.save()
}
