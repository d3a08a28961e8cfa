package main

import (
	"encoding/json"
	"fmt"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/spf13/cobra"
)

func GetConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "prints the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.EnvFile())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return printConfig(cmd, cfg)
		},
	}
}

func printConfig(cmd *cobra.Command, cfg *config.App) error {
	masked := *cfg
	if cfg.Redis != nil {
		redis := *cfg.Redis
		redis.URL = config.MaskURL(redis.URL)
		masked.Redis = &redis
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(masked)
}
