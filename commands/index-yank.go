package commands

import (
	"fmt"

	"regindex/types"

	"github.com/spf13/cobra"
)

// yankConfig holds the arguments of `regindex yank` and `regindex unyank`
type yankConfig struct {
	indexPath   string
	packageName string
	version     string
	vers        types.Version
}

// IndexYank marks a published version as yanked
func IndexYank(cmd *cobra.Command, args []string) error {
	return setYanked(cmd, true)
}

// IndexUnyank clears the yanked flag of a published version
func IndexUnyank(cmd *cobra.Command, args []string) error {
	return setYanked(cmd, false)
}

func setYanked(cmd *cobra.Command, yank bool) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config, err := parseYankArgs(cmd, s)
	if err != nil {
		return err
	}
	ctx, _, err := startOperation(cmd, s)
	if err != nil {
		return err
	}
	store, err := openIndex(ctx, config.indexPath)
	if err != nil {
		return err
	}
	if err := store.SetYanked(config.packageName, config.vers, yank); err != nil {
		return err
	}
	if yank {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%s yanked!\n", config.packageName, config.version)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%s unyanked!\n", config.packageName, config.version)
	}
	return nil
}

// parseYankArgs validates the flags of `regindex yank` and `regindex unyank`
func parseYankArgs(cmd *cobra.Command, s *settings) (*yankConfig, error) {
	config := &yankConfig{indexPath: s.index}
	config.packageName, _ = cmd.Flags().GetString("package")
	config.version, _ = cmd.Flags().GetString("version")
	for _, req := range []struct{ name, value string }{
		{"index", config.indexPath},
		{"package", config.packageName},
		{"version", config.version},
	} {
		if err := requireSetting(req.name, req.value); err != nil {
			return nil, err
		}
	}
	vers, err := types.ParseVersion(config.version)
	if err != nil {
		return nil, err
	}
	config.vers = vers
	return config, nil
}
