package index

import (
	"fmt"
	"regexp"

	"regindex/types"
)

var checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Add publishes candidate. Without force an existing identical version is
// rejected; with force it is replaced in place. Every same-index dependency
// must match at least one record already in the index.
//
// Each hook runs under the lock after the shard is written and before the
// commit. A failing hook stops the operation before the commit, leaving the
// written shard uncommitted.
func (s *Store) Add(candidate types.PackageRecord, force bool, hooks ...func(types.PackageRecord) error) error {
	candidate.Normalize()
	if err := checkCandidate(candidate); err != nil {
		return err
	}

	lock, err := s.lockExclusive()
	if err != nil {
		return err
	}
	defer lock.Release()

	f, err := loadRecordFile(s.root, candidate.Name)
	if err != nil {
		return err
	}
	existing := f.find(candidate.Vers)
	if len(existing) > 0 && !force {
		return newError(ErrDuplicateVersion, "Package `%s` version `%s` is already in the index.", candidate.Name, candidate.Vers)
	}
	if len(existing) > 1 {
		return newError(ErrIndexCorrupt, "Package `%s` found multiple times, is the index corrupt?", candidate.ID())
	}

	for _, dep := range candidate.Deps {
		if !dep.Local() {
			continue
		}
		name := dep.ResolveName()
		matches, err := s.list(name, &dep.Req)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return newError(ErrUnresolvedDependency, "Package `%s` dependency `%s:%s` not found in index.", candidate.Name, name, dep.Req)
		}
	}

	if len(existing) == 1 {
		s.logger.Info("replacing record", "package", candidate.ID(), "path", f.rel)
		if err := f.set(existing[0], candidate); err != nil {
			return err
		}
		if err := f.save(); err != nil {
			return err
		}
	} else {
		s.logger.Info("appending record", "package", candidate.ID(), "path", f.rel)
		if err := f.add(candidate); err != nil {
			return err
		}
		if err := f.save(); err != nil {
			return err
		}
	}

	for _, hook := range hooks {
		if err := hook(candidate); err != nil {
			return err
		}
	}

	return s.commit(f.rel, fmt.Sprintf("Updating crate '%s#%s'", candidate.Name, candidate.Vers))
}

// checkCandidate validates the parts of a record that would make the index unreadable.
func checkCandidate(rec types.PackageRecord) error {
	if err := ValidateName(rec.Name, "package name"); err != nil {
		return err
	}
	if rec.Vers.IsZero() {
		return newError(ErrCorruptRecord, "Package `%s` has no version.", rec.Name)
	}
	if !checksumPattern.MatchString(rec.Cksum) {
		return newError(ErrCorruptRecord, "Package `%s` has malformed checksum `%s`.", rec.ID(), rec.Cksum)
	}
	for _, dep := range rec.Deps {
		what := fmt.Sprintf("dependency of `%s`", rec.ID())
		if err := ValidateName(dep.Name, what); err != nil {
			return err
		}
		if dep.Package != nil {
			if err := ValidateName(*dep.Package, what); err != nil {
				return err
			}
		}
		if dep.Req.IsZero() {
			return newError(ErrCorruptRecord, "Dependency `%s` of `%s` has no version requirement.", dep.Name, rec.ID())
		}
	}
	return nil
}
