package commands

import (
	"fmt"

	"regindex/artifact"
	"regindex/index"

	"github.com/spf13/cobra"
)

// validateConfig holds the arguments of `regindex validate`
type validateConfig struct {
	indexPath   string
	crates      string
	download    bool
	token       string
	metricsFile string
}

// IndexValidate checks the whole index and, optionally, every archive it refers to
func IndexValidate(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config, err := parseValidateArgs(cmd, s)
	if err != nil {
		return err
	}
	ctx, logger, err := startOperation(cmd, s)
	if err != nil {
		return err
	}

	opts := index.ValidateOptions{Reporter: index.LogReporter{Logger: logger}}
	switch {
	case config.crates != "":
		opts.Artifacts = artifact.Dir{Template: config.crates}
	case config.download:
		cfg, err := index.LoadConfig(config.indexPath)
		if err != nil {
			return err
		}
		fetcher := artifact.NewBreakerFetcher(artifact.NewFetcher(artifact.WithToken(config.token), artifact.WithUserAgent("regindex/"+Version)))
		defer fetcher.Close()
		opts.Artifacts = artifact.NewDownload(cfg.DL, fetcher)
	}

	summary, err := index.Validate(ctx, config.indexPath, opts)
	if summary != nil {
		logger.Info("validation finished", "files", summary.Files, "records", summary.Records, "problems", summary.Total())
		if config.metricsFile != "" {
			if merr := summary.WriteMetrics(config.metricsFile); merr != nil {
				return merr
			}
		}
	}
	return err
}

// parseValidateArgs validates the flags of `regindex validate`
func parseValidateArgs(cmd *cobra.Command, s *settings) (*validateConfig, error) {
	config := &validateConfig{indexPath: s.index, crates: s.crates, token: s.token}
	config.download, _ = cmd.Flags().GetBool("download")
	config.metricsFile, _ = cmd.Flags().GetString("metrics-file")
	if err := requireSetting("index", config.indexPath); err != nil {
		return nil, err
	}
	if config.crates != "" && config.download {
		return nil, fmt.Errorf("--crates and --download cannot be used together")
	}
	return config, nil
}
