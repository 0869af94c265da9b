package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"infrar/internal/diag"
	"infrar/internal/diagfmt"
	"infrar/internal/driver"
	"infrar/internal/scanner"
	"infrar/internal/source"
)

var scanJSON bool

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit diagnostics as JSON")
}

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Report agnostic call sites without rewriting anything",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	maxDiagnostics, _ := cmd.Flags().GetInt("max-diagnostics")

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	files, err := driver.ListGoFiles(dir)
	if err != nil {
		return err
	}

	fs := source.NewFileSetWithBase(dir)
	merged := diag.NewBag(maxDiagnostics)
	opColor := color.New(color.FgCyan, color.Bold)

	total := 0
	for _, path := range files {
		id, err := fs.Load(path)
		if err != nil {
			merged.Add(diag.NewError(diag.IOLoadFileError, source.Span{},
				"failed to load file: "+err.Error()))
			continue
		}
		res := scanner.Scan(fs.Get(id), maxDiagnostics)
		merged.Merge(res.Bag)
		total += len(res.Sites)

		if scanJSON || quiet {
			continue
		}
		for _, site := range res.Sites {
			start, _ := fs.Resolve(site.Span)
			opName := site.Op.Name
			if useColor(cmd) {
				opName = opColor.Sprint(opName)
			}
			argTexts := make([]string, 0, len(site.Args))
			for _, arg := range site.Args {
				argTexts = append(argTexts, fmt.Sprintf("%s=%s", arg.Param, arg.Text))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d:%d: %s(%s)\n",
				fs.Get(id).FormatPath("relative", dir), start.Line, start.Col,
				opName, strings.Join(argTexts, ", "))
		}
	}

	merged.Sort()
	if scanJSON {
		if err := diagfmt.JSON(cmd.OutOrStdout(), merged, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeRelative,
		}); err != nil {
			return err
		}
	} else {
		diagfmt.Pretty(cmd.ErrOrStderr(), merged, fs, diagfmt.PrettyOpts{
			Color:     useColor(cmd),
			PathMode:  diagfmt.PathModeRelative,
			ShowNotes: true,
		})
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "%d call sites across %d files\n", total, len(files))
		}
	}

	if merged.HasErrors() {
		return fmt.Errorf("scan finished with errors")
	}
	return nil
}
