package index

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// Committer records a changed shard file in version control.
type Committer interface {
	Commit(relPath, message string) error
}

// Store runs add, yank and list operations against an index directory.
// It keeps no records between calls; every operation re-reads disk under the index lock.
type Store struct {
	root      string
	committer Committer
	logger    *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for lock and write events.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open returns a Store for the index at root. The committer may be nil for
// read-only use; mutations then fail.
func Open(root string, committer Committer, opts ...Option) (*Store, error) {
	if _, err := os.Stat(filepath.Join(root, ConfigFile)); err != nil {
		return nil, errors.Wrapf(err, "Could not open index at `%s`", root)
	}
	s := &Store{
		root:      root,
		committer: committer,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the index directory.
func (s *Store) Root() string {
	return s.root
}

// commit hands the shard path to the committer. The file is already written
// at this point, so a failure leaves the working tree ahead of history.
func (s *Store) commit(rel, message string) error {
	if s.committer == nil {
		return newError(ErrCommitFailed, "No version control configured for `%s`; `%s` was written but not committed.", s.root, rel)
	}
	if err := s.committer.Commit(rel, message); err != nil {
		return wrapError(ErrCommitFailed, err,
			"`%s` was written but could not be committed (%q); commit it manually to reconcile the index history", rel, message)
	}
	s.logger.Debug("committed", "path", rel, "message", message)
	return nil
}

func (s *Store) lockExclusive() (*Lock, error) {
	s.logger.Debug("waiting for exclusive lock", "root", s.root)
	return LockExclusive(s.root)
}

func (s *Store) lockShared() (*Lock, error) {
	s.logger.Debug("waiting for shared lock", "root", s.root)
	return LockShared(s.root)
}
