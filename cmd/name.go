// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func nameCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "name <candidate>",
		Short:     "Print a unique database name derived from the candidate",
		Example:   "testdb name TestOrders --max-length 63 --strict",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"candidate"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), newRewriter(cmd).UniqueName(args[0]))
			return nil
		},
	}
}
