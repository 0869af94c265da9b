package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"infrar/internal/diag"
	"infrar/internal/diagfmt"
	"infrar/internal/driver"
	"infrar/internal/observ"
	"infrar/internal/pipeline"
	"infrar/internal/source"
)

var (
	transformProvider string
	transformDryRun   bool
	transformJobs     int
	transformNoCache  bool
	transformJSON     bool
	transformUI       string
)

func init() {
	transformCmd.Flags().StringVar(&transformProvider, "provider", "", "target provider (aws|gcp|azure); overrides infrar.toml")
	transformCmd.Flags().BoolVar(&transformDryRun, "dry-run", false, "report what would change without writing files")
	transformCmd.Flags().IntVar(&transformJobs, "jobs", 0, "number of parallel workers (0 = all CPUs)")
	transformCmd.Flags().BoolVar(&transformNoCache, "no-cache", false, "bypass the transform cache")
	transformCmd.Flags().BoolVar(&transformJSON, "json", false, "emit diagnostics as JSON")
	transformCmd.Flags().StringVar(&transformUI, "ui", "auto", "progress UI (auto|on|off)")
}

var transformCmd = &cobra.Command{
	Use:   "transform [dir]",
	Short: "Rewrite agnostic storage calls into native SDK calls",
	Long: `Transform scans every Go file under the target directory, rewrites
infrar/storage calls into native SDK calls for the configured provider, and
injects the SDK preamble each file needs. Files with errors are left
untouched; files without agnostic calls pass through unchanged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTransform,
}

func runTransform(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	showTimings, _ := cmd.Flags().GetBool("timings")
	maxDiagnostics, _ := cmd.Flags().GetInt("max-diagnostics")

	startDir := "."
	if len(args) == 1 {
		startDir = args[0]
	}

	manifest, haveManifest, manifestDiags, err := loadProjectManifest(startDir)
	if err != nil {
		return err
	}
	if len(manifestDiags) > 0 {
		bag := diag.NewBag(maxDiagnostics)
		for _, d := range manifestDiags {
			bag.Add(d)
		}
		if err := reportDiagnostics(cmd, bag, source.NewFileSet()); err != nil {
			return err
		}
		return fmt.Errorf("infrar.toml is invalid; run aborted")
	}

	provider := strings.TrimSpace(transformProvider)
	dir := startDir
	jobs := transformJobs
	cacheEnabled := !transformNoCache
	if haveManifest {
		if provider == "" {
			provider = manifest.Config.Project.Provider
		}
		if len(args) == 0 {
			dir = manifest.resolveSourceDir()
		}
		if jobs == 0 {
			jobs = manifest.Config.Transform.Jobs
		}
		if !manifest.Config.Transform.Cache {
			cacheEnabled = false
		}
	}
	if provider == "" {
		return fmt.Errorf("%s", noInfrarTomlMessage)
	}

	var cache *driver.DiskCache
	if cacheEnabled {
		// Недоступный кэш не должен ломать прогон.
		cache, _ = driver.OpenDiskCache("infrar")
	}

	opts := driver.Options{
		Provider:       provider,
		Jobs:           jobs,
		MaxDiagnostics: maxDiagnostics,
		Cache:          cache,
	}

	timer := observ.NewTimer()
	phase := timer.Begin("transform")

	uiChoice, err := readUIMode(transformUI)
	if err != nil {
		return err
	}
	var run *driver.RunResult
	if shouldUseTUI(uiChoice) && !transformJSON && !quiet {
		run, err = runTransformWithUI(cmd.Context(), "infrar transform "+provider, dir, opts)
	} else {
		run, err = driver.TransformDir(cmd.Context(), dir, opts)
	}
	if err != nil {
		return err
	}
	timer.End(phase, fmt.Sprintf("%d files", len(run.Files)))

	merged := mergedDiagnostics(run, maxDiagnostics)
	if err := reportDiagnostics(cmd, merged, run.FileSet); err != nil {
		return err
	}
	if run.ConfigBag.HasErrors() {
		return fmt.Errorf("provider configuration is invalid; no files were processed")
	}

	written := 0
	if !transformDryRun {
		phase = timer.Begin("write")
		var writeBag *diag.Bag
		written, writeBag = writeResults(run, maxDiagnostics)
		timer.End(phase, fmt.Sprintf("%d files", written))
		if writeBag.Len() > 0 {
			if err := reportDiagnostics(cmd, writeBag, run.FileSet); err != nil {
				return err
			}
		}
		if writeBag.HasErrors() {
			return fmt.Errorf("some files could not be written")
		}
	}

	if !quiet && !transformJSON {
		printSummary(cmd, run, written)
	}
	if showTimings {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
		for _, stage := range []pipeline.Stage{pipeline.StageScan, pipeline.StageRewrite, pipeline.StageInject} {
			if run.Timings.Has(stage) {
				fmt.Fprintf(cmd.ErrOrStderr(), "  stage %-14s %7.2f ms\n",
					stage, float64(run.Timings.Duration(stage).Microseconds())/1000.0)
			}
		}
	}

	if run.Failed() {
		return fmt.Errorf("transform finished with errors")
	}
	return nil
}

// writeResults writes every rewritten file back in place. A failed write
// becomes an IOWriteFileError diagnostic and does not block the rest.
func writeResults(run *driver.RunResult, maxDiagnostics int) (int, *diag.Bag) {
	bag := diag.NewBag(maxDiagnostics)
	written := 0
	for i := range run.Files {
		res := &run.Files[i]
		if res.Failed() || !res.Changed {
			continue
		}
		if err := writeOutput(res.Path, res.Output); err != nil {
			bag.Add(diag.NewError(diag.IOWriteFileError, source.Span{File: res.FileID},
				fmt.Sprintf("failed to write %s: %v", res.Path, err)))
			continue
		}
		written++
	}
	return written, bag
}

// writeOutput replaces a source file in place, keeping its permissions.
func writeOutput(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, content, mode)
}

// mergedDiagnostics flattens run- and file-level diagnostics into one
// sorted bag for output.
func mergedDiagnostics(run *driver.RunResult, maxDiagnostics int) *diag.Bag {
	merged := diag.NewBag(maxDiagnostics)
	merged.Merge(run.ConfigBag)
	for i := range run.Files {
		merged.Merge(run.Files[i].Bag)
	}
	merged.Sort()
	merged.Dedup()
	return merged
}

func reportDiagnostics(cmd *cobra.Command, bag *diag.Bag, fs *source.FileSet) error {
	if transformJSON {
		return diagfmt.JSON(cmd.OutOrStdout(), bag, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeRelative,
		})
	}
	if bag.Len() == 0 {
		return nil
	}
	diagfmt.Pretty(cmd.ErrOrStderr(), bag, fs, diagfmt.PrettyOpts{
		Color:     useColor(cmd),
		PathMode:  diagfmt.PathModeRelative,
		ShowNotes: true,
	})
	return nil
}

func printSummary(cmd *cobra.Command, run *driver.RunResult, written int) {
	rewritten, cached, failed := 0, 0, 0
	for i := range run.Files {
		switch {
		case run.Files[i].Failed():
			failed++
		case run.Files[i].Cached:
			cached++
		case run.Files[i].Changed:
			rewritten++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d files scanned: %d rewritten, %d cached, %d failed, %d written\n",
		len(run.Files), rewritten, cached, failed, written)
}
