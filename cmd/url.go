// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xataio/testdb/internal/connstr"
)

func urlCmd() *cobra.Command {
	var name string
	var searchPath string

	urlCmd := &cobra.Command{
		Use:       "url [connection-string]",
		Short:     "Print a connection string targeting a new, uniquely named database",
		Long:      "Print the connection string with its database replaced by the given name plus a random suffix. All other attributes are kept as they are.",
		Example:   "testdb url 'Server=localhost;User Id=sa;Password=secret;' --name TestOrders",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"connection-string"},
		RunE: func(cmd *cobra.Command, args []string) error {
			base := baseConnectionString(args)

			// Set the search_path before rewriting so that the logged
			// connection string is the one that is printed
			if searchPath != "" {
				var err error
				base, err = connstr.SetSearchPath(base, searchPath)
				if err != nil {
					return fmt.Errorf("failed to add search_path option: %w", err)
				}
			}

			str, err := newRewriter(cmd).ConnectionString(base, name)
			if err != nil {
				return fmt.Errorf("failed to rewrite connection string: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), str)

			return nil
		},
	}

	urlCmd.Flags().StringVarP(&name, "name", "n", "", "Name the database is derived from, eg. the test name")
	urlCmd.Flags().StringVar(&searchPath, "search-path", "", "Also set the search_path option (Postgres only)")

	return urlCmd
}
