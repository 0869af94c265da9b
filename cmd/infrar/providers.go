package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"infrar/internal/adapter"
	"infrar/internal/registry"
)

var providersVerbose bool

func init() {
	providersCmd.Flags().BoolVarP(&providersVerbose, "verbose", "v", false, "show per-operation native targets")
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported cloud providers and their native mappings",
	RunE: func(cmd *cobra.Command, args []string) error {
		idColor := color.New(color.FgGreen, color.Bold)

		for _, id := range adapter.IDs() {
			a, err := adapter.For(id)
			if err != nil {
				return err
			}
			name := id
			if useColor(cmd) {
				name = idColor.Sprint(id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", name, a.Name, a.SDK)

			if !providersVerbose {
				continue
			}
			ops := make([]string, 0, len(a.Ops))
			for op := range a.Ops {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				tmpl := a.Ops[op]
				params := make([]string, 0, len(tmpl.Args()))
				for _, ref := range tmpl.Args() {
					if ref.IsFixed() {
						params = append(params, ref.Fixed)
						continue
					}
					params = append(params, ref.Param)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-14s -> %s(%s)\n", op, tmpl.Target, strings.Join(params, ", "))
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "schema %s, %d operations\n", registry.SchemaVersion, len(registry.Operations()))
		return nil
	},
}
