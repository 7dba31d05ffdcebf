package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/foodsignal/pkg/foodsignal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		Long: `Print the configuration after merging defaults, the config file,
FOODSIGNAL_* environment variables and flags. An invalid configuration is
still printed, followed by every validation error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if cfg == nil {
				return err
			}
			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(os.Stderr, "Configuration file: %s\n", used)
			}
			data, yerr := cfg.YAML()
			if yerr != nil {
				return yerr
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit non-zero when invalid",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}

	cmd.AddCommand(show, validate)
	return cmd
}
