package commands

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewLogger returns the CLI logger writing to w at the given level.
func NewLogger(level string, w io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level `%s`", level)
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "regindex",
		ReportTimestamp: true,
		Level:           lvl,
	}), nil
}

// startOperation tags a logger with a fresh operation ID and carries it in the returned context.
func startOperation(cmd *cobra.Command, s *settings) (context.Context, *log.Logger, error) {
	base, err := NewLogger(s.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	logger := base.With("op", uuid.New().String(), "cmd", cmd.Name())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Debug("starting", "index", s.index)
	return log.WithContext(ctx, logger), logger, nil
}
