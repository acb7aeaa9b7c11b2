package commands

import (
	"fmt"
	"io"

	"regindex/index"
	"regindex/types"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/purl"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// listConfig holds the arguments of `regindex list`
type listConfig struct {
	indexPath   string
	packageName string
	version     string
	req         *types.Requirement
	purl        bool
}

// IndexList prints the matching records, one per line
func IndexList(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config, err := parseListArgs(cmd, s)
	if err != nil {
		return err
	}
	ctx, _, err := startOperation(cmd, s)
	if err != nil {
		return err
	}
	store, err := index.Open(config.indexPath, nil, index.WithLogger(log.FromContext(ctx)))
	if err != nil {
		return err
	}

	count := 0
	emit := func(rec types.PackageRecord) error {
		count++
		return printRecord(cmd.OutOrStdout(), rec, config.purl)
	}
	if config.packageName != "" {
		records, err := store.List(config.packageName, config.req)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := emit(rec); err != nil {
				return err
			}
		}
	} else if err := store.ListAll(config.req, emit); err != nil {
		return err
	}

	if count == 0 {
		known := false
		if config.packageName != "" {
			if known, err = store.Exists(config.packageName); err != nil {
				return err
			}
		}
		return emptyListError(config, known)
	}
	return nil
}

// parseListArgs validates the flags of `regindex list`
func parseListArgs(cmd *cobra.Command, s *settings) (*listConfig, error) {
	config := &listConfig{indexPath: s.index}
	config.packageName, _ = cmd.Flags().GetString("package")
	config.version, _ = cmd.Flags().GetString("version")
	config.purl, _ = cmd.Flags().GetBool("purl")
	if err := requireSetting("index", config.indexPath); err != nil {
		return nil, err
	}
	if config.version != "" {
		req, err := types.ParseRequirement(config.version)
		if err != nil {
			return nil, err
		}
		config.req = &req
	}
	return config, nil
}

// printRecord writes rec as an index line, or as its canonical package URL.
func printRecord(w io.Writer, rec types.PackageRecord, asPURL bool) error {
	if asPURL {
		p, err := purl.Parse(fmt.Sprintf("pkg:cargo/%s@%s", rec.Name, rec.Vers))
		if err != nil {
			return errors.Wrapf(err, "invalid package URL for `%s`", rec.ID())
		}
		_, err = fmt.Fprintln(w, p.String())
		return err
	}
	line, err := index.EncodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(line))
	return err
}

// emptyListError explains an empty result. known reports whether the
// requested package has a shard file at all.
func emptyListError(config *listConfig, known bool) error {
	switch {
	case config.packageName != "" && known && config.version != "":
		return fmt.Errorf("No entries found for `%s` that match version `%s`.", config.packageName, config.version)
	case config.packageName != "":
		return fmt.Errorf("Package `%s` is not in the index.", config.packageName)
	case config.version != "":
		return fmt.Errorf("No packages matching version requirement `%s` found.", config.version)
	default:
		return fmt.Errorf("The index is empty!")
	}
}
