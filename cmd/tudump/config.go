package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jward/tudump/internal/dump"
)

// config holds settings that may come from flags, TUDUMP_* environment
// variables or a config file, in that order of precedence.
type config struct {
	Tool     string `mapstructure:"tool"`
	Filter   string `mapstructure:"filter"`
	Manifest string `mapstructure:"manifest"`
	Verbose  bool   `mapstructure:"verbose"`
}

var configKeys = []string{"tool", "filter", "manifest", "verbose"}

func loadConfig(cmd *cobra.Command, cfgFile string) (*config, error) {
	v := viper.New()
	v.SetDefault("tool", dump.DefaultTool)
	v.SetDefault("filter", "")
	v.SetDefault("manifest", "")
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("TUDUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	for _, key := range configKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", key, err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Tool == "" {
		cfg.Tool = dump.DefaultTool
	}
	return &cfg, nil
}
