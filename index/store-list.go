package index

import (
	"os"
	"path"

	"regindex/types"
)

// List returns the records of one package in file order, filtered by req when
// it is non-nil. A package with no shard file yields an empty result.
func (s *Store) List(name string, req *types.Requirement) ([]types.PackageRecord, error) {
	if err := ValidateName(name, "package name"); err != nil {
		return nil, err
	}
	lock, err := s.lockShared()
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	return s.list(name, req)
}

// ListAll calls fn for every record in the index that satisfies req, package
// by package in walk order. Records are streamed, never collected. A non-nil
// error from fn stops the walk and is returned.
func (s *Store) ListAll(req *types.Requirement, fn func(types.PackageRecord) error) error {
	lock, err := s.lockShared()
	if err != nil {
		return err
	}
	defer lock.Release()

	return walkShards(s.root, func(rel string) error {
		records, err := s.list(path.Base(rel), req)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists reports whether the package has a shard file.
func (s *Store) Exists(name string) (bool, error) {
	if err := ValidateName(name, "package name"); err != nil {
		return false, err
	}
	_, err := os.Stat(shardFile(s.root, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// list reads one shard file; the caller holds the lock.
func (s *Store) list(name string, req *types.Requirement) ([]types.PackageRecord, error) {
	records, err := ReadRecords(s.root, name)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return records, nil
	}
	matching := records[:0:0]
	for _, rec := range records {
		if req.Matches(rec.Vers) {
			matching = append(matching, rec)
		}
	}
	return matching, nil
}
