package commands

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const Version = "0.1.0"

// settings are the values every subcommand shares. Each one can come from a
// flag, a REGINDEX_* environment variable or the --config file, in that order.
type settings struct {
	index      string
	indexURL   string
	logLevel   string
	crates     string
	token      string
	registries map[string]string
}

var settingKeys = []string{"index", "index-url", "log-level", "crates", "token"}

// loadSettings resolves the shared settings for cmd.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	v := viper.New()
	v.SetDefault("log-level", "warn")
	v.SetEnvPrefix("REGINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := bindSettingFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}

	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "Failed to read config file `%s`.", f.Value.String())
		}
	}

	return &settings{
		index:      v.GetString("index"),
		indexURL:   v.GetString("index-url"),
		logLevel:   v.GetString("log-level"),
		crates:     v.GetString("crates"),
		token:      v.GetString("token"),
		registries: v.GetStringMapString("registries"),
	}, nil
}

// bindSettingFlags binds the setting flags a subcommand defines. Flags it
// does not define are left to the environment and the config file.
func bindSettingFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range settingKeys {
		f := flags.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", key)
		}
	}
	return nil
}

// requireSetting fails the way cobra reports a missing required flag.
func requireSetting(name, value string) error {
	if value == "" {
		return fmt.Errorf("required flag(s) \"%s\" not set", name)
	}
	return nil
}
