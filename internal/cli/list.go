package cli

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/lockfile"
)

// loadLockfileForListing loads scope's lockfile for read-only display,
// shared by `list` and `uninstall --all`.
func loadLockfileForListing(scope layout.Scope) (*lockfile.Lockfile, error) {
	return lockfile.Load(scope.LockfilePath)
}

func newListCmd() *cobra.Command {
	var all bool
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages and their commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := resolveScope(false)
			if err != nil {
				return err
			}
			lf, err := loadLockfileForListing(scope)
			if err != nil {
				return err
			}

			type row struct {
				command, pkg, version, scope string
			}
			var rows []row
			for name, c := range lf.Commands {
				rows = append(rows, row{command: name, pkg: c.Package, version: c.Version, scope: "project"})
			}

			if all {
				global, err := layout.GlobalScope()
				if err != nil {
					return err
				}
				glf, err := loadLockfileForListing(global)
				if err != nil {
					return err
				}
				for name, c := range glf.Commands {
					rows = append(rows, row{command: name, pkg: c.Package, version: c.Version, scope: "global"})
				}
			}

			sort.Slice(rows, func(i, j int) bool { return rows[i].command < rows[j].command })

			dw := NewDataWriter(os.Stdout, outputFormat)
			tb := NewTableBuilder("COMMAND", "PACKAGE", "VERSION", "SCOPE")
			for _, r := range rows {
				tb.AddRow(r.command, r.pkg, r.version, r.scope)
			}
			return tb.Write(dw)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "also include the global scope")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json")
	return cmd
}
