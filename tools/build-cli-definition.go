// SPDX-License-Identifier: Apache-2.0

// build-cli-definition writes a machine readable description of the testdb
// command tree, used to keep the documentation in sync with the CLI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/xataio/testdb/cmd"
)

type Definition struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Commands []Command `json:"commands"`
	Flags    []Flag    `json:"flags"`
}

type Command struct {
	Name        string    `json:"name"`
	Short       string    `json:"short"`
	Use         string    `json:"use"`
	Example     string    `json:"example,omitempty"`
	Args        []string  `json:"args"`
	Flags       []Flag    `json:"flags"`
	Subcommands []Command `json:"subcommands,omitempty"`
}

type Flag struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Default     string `json:"default"`
}

func main() {
	out := flag.String("o", "cli-definition.json", "output file, .json or .yaml")
	flag.Parse()

	root := cmd.Prepare()

	def := Definition{
		Name:     root.Name(),
		Version:  root.Version,
		Commands: commands(root.Commands()),
		Flags:    flags(root.PersistentFlags()),
	}

	if err := write(*out, def); err != nil {
		log.Fatalf("failed to write CLI definition: %v", err)
	}

	fmt.Printf("CLI definition written to %s\n", *out)
}

func commands(cmds []*cobra.Command) []Command {
	result := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		result = append(result, Command{
			Name:        c.Name(),
			Short:       c.Short,
			Use:         c.Use,
			Example:     c.Example,
			Args:        append([]string{}, c.ValidArgs...),
			Flags:       flags(c.LocalNonPersistentFlags()),
			Subcommands: commands(c.Commands()),
		})
	}
	return result
}

func flags(fs *pflag.FlagSet) []Flag {
	result := []Flag{}
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		result = append(result, Flag{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Default:     f.DefValue,
		})
	})
	return result
}

func write(path string, def Definition) error {
	var (
		data []byte
		err  error
	)

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(def)
	default:
		data, err = json.MarshalIndent(def, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
