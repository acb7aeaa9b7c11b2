package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"regindex/artifact"
	"regindex/index"
	"regindex/manifest"
	"regindex/types"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// addConfig holds the arguments of `regindex add` and `regindex metadata`
type addConfig struct {
	indexPath    string
	indexURL     string
	manifestPath string
	cratePath    string
	recordPath   string
	upload       string
	force        bool
	registries   map[string]string
}

// IndexAdd publishes a package version to the index
func IndexAdd(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config, err := parseAddArgs(cmd, s)
	if err != nil {
		return err
	}
	ctx, logger, err := startOperation(cmd, s)
	if err != nil {
		return err
	}

	// Build the record before taking any lock
	rec, err := buildCandidate(config)
	if err != nil {
		return err
	}

	store, err := openIndex(ctx, config.indexPath)
	if err != nil {
		return err
	}
	// The archive is copied under the index lock, before the commit
	var hooks []func(types.PackageRecord) error
	if config.upload != "" {
		hooks = append(hooks, func(rec types.PackageRecord) error {
			dst, err := artifact.Upload(config.cratePath, config.upload, artifact.Ref{Name: rec.Name, Version: rec.Vers.String()})
			if err != nil {
				return err
			}
			logger.Info("uploaded archive", "path", dst)
			return nil
		})
	}
	if err := store.Add(rec, config.force, hooks...); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s successfully added!\n", rec.ID())
	return nil
}

// IndexMetadata prints the record that `add` would write
func IndexMetadata(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config, err := parseMetadataArgs(cmd, s)
	if err != nil {
		return err
	}
	if _, _, err := startOperation(cmd, s); err != nil {
		return err
	}
	rec, err := buildCandidate(config)
	if err != nil {
		return err
	}
	line, err := index.EncodeRecord(rec)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(line))
	return nil
}

// parseAddArgs validates the flags of `regindex add`
func parseAddArgs(cmd *cobra.Command, s *settings) (*addConfig, error) {
	config, err := parseMetadataArgs(cmd, s)
	if err != nil {
		return nil, err
	}
	config.indexPath = s.index
	config.force, _ = cmd.Flags().GetBool("force")
	config.upload, _ = cmd.Flags().GetString("upload")
	if err := requireSetting("index", config.indexPath); err != nil {
		return nil, err
	}
	if config.upload != "" && config.cratePath == "" {
		return nil, fmt.Errorf("--upload requires --crate")
	}
	return config, nil
}

// parseMetadataArgs validates the flags shared by `add` and `metadata`
func parseMetadataArgs(cmd *cobra.Command, s *settings) (*addConfig, error) {
	config := &addConfig{indexURL: s.indexURL, registries: s.registries}
	config.manifestPath, _ = cmd.Flags().GetString("manifest-path")
	config.cratePath, _ = cmd.Flags().GetString("crate")
	if f := cmd.Flags().Lookup("record"); f != nil {
		config.recordPath = f.Value.String()
	}

	if config.recordPath != "" {
		if config.cratePath != "" || config.manifestPath != "" {
			return nil, fmt.Errorf("--record cannot be combined with --crate or --manifest-path")
		}
		return config, nil
	}
	if err := requireSetting("index-url", config.indexURL); err != nil {
		return nil, err
	}
	if config.cratePath == "" {
		return nil, fmt.Errorf("required flag(s) \"crate\" not set; packaging from source is not supported")
	}
	if _, err := os.Stat(config.cratePath); err != nil {
		return nil, fmt.Errorf("Crate file not found at `%s`", config.cratePath)
	}
	return config, nil
}

// buildCandidate reads the record from --record, or derives it from the
// manifest and the archive checksum.
func buildCandidate(config *addConfig) (types.PackageRecord, error) {
	if config.recordPath != "" {
		data, err := os.ReadFile(config.recordPath)
		if err != nil {
			return types.PackageRecord{}, errors.Wrapf(err, "Failed to read `%s`.", config.recordPath)
		}
		return index.DecodeRecord(bytes.TrimRight(data, "\r\n"))
	}

	m, err := loadManifest(config)
	if err != nil {
		return types.PackageRecord{}, err
	}
	cksum, err := artifact.FileChecksum(config.cratePath)
	if err != nil {
		return types.PackageRecord{}, err
	}
	return manifest.Record(m, cksum, manifest.RecordOptions{
		IndexURL:   config.indexURL,
		Registries: config.registries,
	})
}

// loadManifest prefers --manifest-path and falls back to the manifest inside the archive.
func loadManifest(config *addConfig) (*manifest.Manifest, error) {
	if config.manifestPath != "" {
		path := config.manifestPath
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, artifact.ManifestName)
		}
		return manifest.Load(path)
	}
	data, err := artifact.ReadManifest(config.cratePath)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse manifest in `%s`.", config.cratePath)
	}
	return m, nil
}
