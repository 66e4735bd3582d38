package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the registry for packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg := registryClient(cfg)

			results, err := reg.Search(context.Background(), args[0])
			if err != nil {
				return err
			}

			dw := NewDataWriter(os.Stdout, outputFormat)
			tb := NewTableBuilder("NAMESPACE", "NAME", "VERSION", "DESCRIPTION")
			for _, r := range results {
				tb.AddRow(r.Namespace, r.Name, r.Version, r.Description)
			}
			return tb.Write(dw)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json")
	return cmd
}
