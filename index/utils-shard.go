package index

import (
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// ConfigFile is the index configuration at the root of the index.
	ConfigFile = "config.json"
	// LockFile is the advisory lock file at the root of the index.
	LockFile = ".cargo-index-lock"
	gitDir   = ".git"
)

// ShardPath returns the slash-separated path of a package's shard file,
// relative to the index root. The name is lower-cased first:
//
//	a      -> 1/a
//	ab     -> 2/ab
//	abc    -> 3/a/abc
//	abcd.. -> ab/cd/abcd..
func ShardPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return ""
	case 1:
		return path.Join("1", name)
	case 2:
		return path.Join("2", name)
	case 3:
		return path.Join("3", name[:1], name)
	default:
		return path.Join(name[0:2], name[2:4], name)
	}
}

// shardFile returns the absolute location of a package's shard file under root.
func shardFile(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(ShardPath(name)))
}

// ValidateName checks that name is non-empty and only holds alphanumerics, '_' and '-'.
// what describes the name in the error, e.g. "package name".
func ValidateName(name, what string) error {
	if name == "" {
		return newError(ErrInvalidName, "Empty %s.", what)
	}
	for _, ch := range name {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '_' && ch != '-' {
			return newError(ErrInvalidName, "Invalid character `%c` in %s: `%s`", ch, what, name)
		}
	}
	return nil
}
