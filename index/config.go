package index

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"regindex/types"

	"github.com/pkg/errors"
)

// Init creates a new index directory at root holding only config.json.
// It fails if root already exists.
func Init(root string, cfg types.IndexConfig) error {
	if _, err := os.Stat(root); err == nil {
		return errors.Errorf("Path `%s` already exists. This command requires a non-existent path to create.", root)
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat `%s`", root)
	}
	if err := checkURL(cfg.DL, "dl"); err != nil {
		return err
	}
	if cfg.API != "" {
		if err := checkURL(cfg.API, "api"); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory `%s`", root)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	configPath := filepath.Join(root, ConfigFile)
	if err := os.WriteFile(configPath, bytes.TrimRight(buf.Bytes(), "\n"), 0644); err != nil {
		return errors.Wrapf(err, "failed to write `%s`", configPath)
	}
	return nil
}

// LoadConfig reads config.json from the index root.
func LoadConfig(root string) (types.IndexConfig, error) {
	configPath := filepath.Join(root, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return types.IndexConfig{}, errors.Wrapf(err, "Failed to open `%s`.", configPath)
	}
	var cfg types.IndexConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return types.IndexConfig{}, errors.Wrapf(err, "Failed to deserialize `%s`.", configPath)
	}
	if err := checkURL(cfg.DL, "dl"); err != nil {
		return types.IndexConfig{}, errors.Wrapf(err, "Failed to deserialize `%s`.", configPath)
	}
	return cfg, nil
}

func checkURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid %s URL `%s`", field, raw)
	}
	if u.Scheme == "" {
		return errors.Errorf("invalid %s URL `%s`: missing scheme", field, raw)
	}
	return nil
}
