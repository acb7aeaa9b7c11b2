package index

import (
	"fmt"

	"regindex/types"
)

// Yank marks a published version as yanked.
func (s *Store) Yank(name string, vers types.Version) error {
	return s.SetYanked(name, vers, true)
}

// Unyank clears the yanked flag of a published version.
func (s *Store) Unyank(name string, vers types.Version) error {
	return s.SetYanked(name, vers, false)
}

// SetYanked sets the yanked flag of exactly one record. It fails if the flag
// already has the requested value.
func (s *Store) SetYanked(name string, vers types.Version, yank bool) error {
	if err := ValidateName(name, "package name"); err != nil {
		return err
	}
	lock, err := s.lockExclusive()
	if err != nil {
		return err
	}
	defer lock.Release()

	f, err := loadRecordFile(s.root, name)
	if err != nil {
		return err
	}
	if !f.exists {
		return newError(ErrPackageNotFound, "Package `%s` is not in the index.", name)
	}

	found := f.find(vers)
	switch {
	case len(found) == 0:
		return newError(ErrVersionNotFound, "Version `%s` for package `%s` not found.", vers, name)
	case len(found) > 1:
		return newError(ErrIndexCorrupt, "Package `%s:%s` found multiple times, is the index corrupt?", name, vers)
	}

	i := found[0]
	rec := f.records[i]
	if rec.Yanked == yank {
		if yank {
			return newError(ErrAlreadyInState, "`%s` is already yanked!", rec.ID())
		}
		return newError(ErrAlreadyInState, "`%s` is not yanked!", rec.ID())
	}
	rec.Yanked = yank
	if err := f.set(i, rec); err != nil {
		return err
	}
	if err := f.save(); err != nil {
		return err
	}

	verb := "Yanking"
	if !yank {
		verb = "Unyanking"
	}
	s.logger.Info(verb+" record", "package", rec.ID(), "path", f.rel)
	return s.commit(f.rel, fmt.Sprintf("%s crate `%s`", verb, rec.ID()))
}
