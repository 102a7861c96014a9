package commands

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// CloudInfo is one row of the clouds command.
type CloudInfo struct {
	Cloud   string `json:"cloud"    yaml:"cloud"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// NewCloudsCommand lists the supported cloud environments.
func NewCloudsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clouds",
		Short: "List supported clouds",
		Long:  "List the Zscaler cloud environments and their API base URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clouds := zscaler.Clouds()
			infos := make([]CloudInfo, 0, len(clouds))

			for _, cloud := range clouds {
				baseURL, err := cloud.BaseURL()
				if err != nil {
					return err
				}

				infos = append(infos, CloudInfo{Cloud: cloud.String(), BaseURL: baseURL})
			}

			return writeOutput(cmd.OutOrStdout(), infos, func(out io.Writer) error {
				table := tablewriter.NewWriter(out)
				table.Header("Cloud", "Base URL")

				for _, info := range infos {
					_ = table.Append(info.Cloud, info.BaseURL)
				}

				err := table.Render()
				if err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			})
		},
	}
}
