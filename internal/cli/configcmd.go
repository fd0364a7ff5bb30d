package cli

import (
	"fmt"

	"github.com/hyperjump/regqa/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

func newConfigCommand(opts *globalOptions) *cobra.Command {
	var writePath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration after defaults, the config file and REGQA_*
environment overrides are applied. Secrets are masked. With --write the
configuration is saved to a file that can be passed back with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			masked := *cfg
			if masked.Embedding.APIKey != "" {
				masked.Embedding.APIKey = redacted
			}
			if masked.Embedding.Cache.RedisPassword != "" {
				masked.Embedding.Cache.RedisPassword = redacted
			}
			if writePath != "" {
				if err := config.Save(writePath, &masked); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s\n", writePath)
				return nil
			}
			data, err := yaml.Marshal(&masked)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&writePath, "write", "w", "", "write the configuration to this file instead of stdout")
	return cmd
}
