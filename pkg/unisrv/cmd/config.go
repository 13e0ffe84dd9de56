package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/config"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage unisrv configuration",
	}
	cmd.AddCommand(newConfigViewCommand(), newConfigSetCommand())
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			host, err := config.ResolveAPIHost(rt.apiHost, rt.cfg)
			if err != nil {
				return err
			}
			view := struct {
				Path            string          `json:"path" yaml:"path"`
				EffectiveHost   string          `json:"effective_api_host" yaml:"effectiveApiHost"`
				Settings        config.Settings `json:"settings" yaml:"settings"`
				ConfiguredHost  string          `json:"api_host,omitempty" yaml:"apiHost,omitempty"`
				EffectiveOutput string          `json:"effective_output" yaml:"effectiveOutput"`
			}{
				Path:            rt.configPath,
				EffectiveHost:   host,
				Settings:        rt.cfg.Settings,
				ConfiguredHost:  rt.cfg.APIHost,
				EffectiveOutput: rt.OutputFormat(),
			}
			return rt.Render(view, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "# %s (api host in use: %s)\n", rt.configPath, host)
				data, err := yaml.Marshal(rt.cfg)
				if err != nil {
					_, _ = fmt.Fprintf(w, "# failed to render config: %v\n", err)
					return
				}
				_, _ = fmt.Fprint(w, string(data))
			})
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set a configuration value. Supported keys:
  api-host
  settings.output-format
  settings.timeout
  settings.ca-file
  settings.insecure-skip-tls-verify`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if args[0] == "settings.output-format" {
				if _, _, err := output.ParseFormat(args[1]); err != nil {
					return err
				}
			}
			if err := rt.cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(rt.configPath, rt.cfg); err != nil {
				return err
			}
			rt.Printf("Set %s in %s\n", args[0], rt.configPath)
			return nil
		},
	}
}
