package index

import (
	"io/fs"
	"path/filepath"

	"github.com/pkg/errors"
)

// walkShards calls fn for every shard file under root in lexical order, with
// the slash-separated path relative to root. The config file, the lock file
// and git metadata are skipped.
func walkShards(root string, fn func(rel string) error) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		switch d.Name() {
		case ConfigFile, LockFile, gitDir:
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel))
	})
	return errors.Wrapf(err, "failed to walk index `%s`", root)
}
