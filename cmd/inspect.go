// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/xataio/testdb/internal/connstr"
)

// inspection is the printed form of a parsed connection string.
type inspection struct {
	Format     string            `json:"format"`
	Database   string            `json:"database"`
	Attributes map[string]string `json:"attributes"`
}

func inspectCmd() *cobra.Command {
	var output string

	inspectCmd := &cobra.Command{
		Use:       "inspect [connection-string]",
		Short:     "Print the format, database and attributes of a connection string",
		Example:   "testdb inspect 'host=localhost dbname=app' --output json",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"connection-string"},
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connstr.Parse(baseConnectionString(args))
			if err != nil {
				return err
			}

			i := inspection{
				Format:     d.Format().String(),
				Database:   d.Database(),
				Attributes: make(map[string]string),
			}
			for _, k := range d.Keys() {
				i.Attributes[k], _ = d.Get(k)
			}

			return writeInspection(cmd.OutOrStdout(), output, i)
		},
	}

	inspectCmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml or json")

	return inspectCmd
}

func writeInspection(w io.Writer, format string, i inspection) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(i); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case "yaml":
		out, err := yaml.Marshal(i)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", errInvalidOutputFormat, format)
	}
	return nil
}
