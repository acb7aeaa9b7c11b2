//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package index

import "os"

// flock is not available here. Operations refuse to run unlocked.
func flock(*os.File, bool) error {
	return ErrLockUnavailable
}

func funlock(*os.File) error {
	return nil
}
