package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show unisrv version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			info := version.GetBuildInfo()
			return rt.Render(info, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "unisrv %s (commit: %s, built: %s, %s %s)\n",
					info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
			})
		},
	}
}
