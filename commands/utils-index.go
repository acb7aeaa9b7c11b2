package commands

import (
	"context"

	"regindex/index"
	"regindex/vcs"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// openIndex opens the index at path together with its git repository.
func openIndex(ctx context.Context, path string) (*index.Store, error) {
	repo, err := vcs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not open index at `%s`.", path)
	}
	return index.Open(path, repo, index.WithLogger(log.FromContext(ctx)))
}
