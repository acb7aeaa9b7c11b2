package commands

import (
	"fmt"

	"regindex/index"
	"regindex/types"
	"regindex/vcs"

	"github.com/spf13/cobra"
)

// initConfig holds the arguments of `regindex init`
type initConfig struct {
	indexPath string
	dl        string
	api       string
}

// IndexInit creates a new index directory with a config.json and a git repository
func IndexInit(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config, err := parseInitArgs(cmd, s)
	if err != nil {
		return err
	}
	_, logger, err := startOperation(cmd, s)
	if err != nil {
		return err
	}

	// Write config.json
	if err := index.Init(config.indexPath, types.NewIndexConfig(config.dl, config.api)); err != nil {
		return err
	}

	// Record it as the first commit
	repo, err := vcs.Init(config.indexPath)
	if err != nil {
		return err
	}
	if err := repo.Commit(index.ConfigFile, "Initial commit"); err != nil {
		return err
	}

	logger.Info("index created", "path", config.indexPath, "dl", config.dl)
	fmt.Fprintf(cmd.OutOrStdout(), "Index created at `%s`.\n", config.indexPath)
	return nil
}

// parseInitArgs validates the flags of `regindex init`
func parseInitArgs(cmd *cobra.Command, s *settings) (*initConfig, error) {
	config := &initConfig{indexPath: s.index}
	config.dl, _ = cmd.Flags().GetString("dl")
	config.api, _ = cmd.Flags().GetString("api")
	if err := requireSetting("index", config.indexPath); err != nil {
		return nil, err
	}
	if err := requireSetting("dl", config.dl); err != nil {
		return nil, err
	}
	return config, nil
}
