// Package driver orchestrates the transform run: provider validation,
// per-file scan/rewrite/inject, parallel execution, and the disk cache.
package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"infrar/internal/adapter"
	"infrar/internal/diag"
	"infrar/internal/inject"
	"infrar/internal/pipeline"
	"infrar/internal/registry"
	"infrar/internal/rewriter"
	"infrar/internal/scanner"
	"infrar/internal/source"
)

// Options controls a transform run.
type Options struct {
	Provider       string
	Jobs           int // <= 0 means GOMAXPROCS
	MaxDiagnostics int
	Cache          *DiskCache            // nil disables caching
	Sink           pipeline.ProgressSink // nil disables progress events
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path   string
	FileID source.FileID
	Bag    *diag.Bag
	// Output holds the transformed bytes. Nil when error diagnostics
	// exclude the file: a failed file is never partially rewritten.
	Output  []byte
	Changed bool
	Sites   int
	UsedOps []string
	Cached  bool
	Timings pipeline.Timings
}

// Failed reports whether error diagnostics excluded the file.
func (r *FileResult) Failed() bool {
	return r.Bag.HasErrors()
}

// RunResult aggregates one transform run.
type RunResult struct {
	FileSet *source.FileSet
	Files   []FileResult
	// ConfigBag holds run-level diagnostics. When it has errors the run
	// stopped before touching any file and Files is empty.
	ConfigBag *diag.Bag
	Timings   pipeline.Timings
}

// Failed reports whether the run produced any error diagnostic.
func (r *RunResult) Failed() bool {
	if r.ConfigBag.HasErrors() {
		return true
	}
	for i := range r.Files {
		if r.Files[i].Failed() {
			return true
		}
	}
	return false
}

// ListGoFiles returns a sorted list of all *.go files under dir, skipping
// hidden and underscore-prefixed directories and generated test trees.
func ListGoFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".go") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// ResolveProvider loads and validates the adapter for a provider id,
// reporting problems as fatal config diagnostics.
func ResolveProvider(provider string, bag *diag.Bag) *adapter.ProviderAdapter {
	a, err := adapter.For(provider)
	if err != nil {
		bag.Add(diag.NewError(diag.ConfigUnknownProvider, source.Span{}, err.Error()))
		return nil
	}
	coverage := adapter.Validate(a, registry.Operations())
	for _, d := range coverage {
		bag.Add(d)
	}
	if bag.HasErrors() {
		return nil
	}
	return a
}

// TransformDir transforms all *.go files under dir in parallel.
// Provider coverage is validated before any file is read: a config error
// yields a RunResult with no file results at all.
func TransformDir(ctx context.Context, dir string, opts Options) (*RunResult, error) {
	run := &RunResult{
		FileSet:   source.NewFileSetWithBase(dir),
		ConfigBag: diag.NewBag(opts.MaxDiagnostics),
	}

	a := ResolveProvider(opts.Provider, run.ConfigBag)
	if a == nil {
		return run, nil
	}

	files, err := ListGoFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return run, nil
	}

	sink := opts.Sink
	if sink == nil {
		sink = pipeline.NopSink{}
	}
	for _, path := range files {
		sink.OnEvent(pipeline.Event{File: path, Stage: pipeline.StageScan, Status: pipeline.StatusQueued})
	}

	// Предзагружаем все файлы: FileSet не потокобезопасен на запись.
	loadErrors := make(map[string]error, len(files))
	for _, path := range files {
		if _, err := run.FileSet.Load(path); err != nil {
			loadErrors[path] = err
		}
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Результаты (индексы уникальны для каждой горутины, мьютекс не нужен)
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func(i int, path string) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				started := time.Now()
				sink.OnEvent(pipeline.Event{File: path, Stage: pipeline.StageScan, Status: pipeline.StatusWorking})

				if loadErr, hadError := loadErrors[path]; hadError {
					bag := diag.NewBag(opts.MaxDiagnostics)
					bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{},
						"failed to load file: "+loadErr.Error()))
					results[i] = FileResult{Path: path, Bag: bag}
					sink.OnEvent(pipeline.Event{File: path, Status: pipeline.StatusError, Err: loadErr, Elapsed: time.Since(started)})
					return nil
				}

				file, ok := run.FileSet.GetByPath(path)
				if !ok {
					// Load прошёл без ошибки, но файла нет в наборе.
					bag := diag.NewBag(opts.MaxDiagnostics)
					bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{},
						"file missing from set: "+path))
					results[i] = FileResult{Path: path, Bag: bag}
					sink.OnEvent(pipeline.Event{File: path, Status: pipeline.StatusError, Elapsed: time.Since(started)})
					return nil
				}

				key := TransformKey(file.Hash, a)
				var payload TransformPayload
				if hit, err := opts.Cache.Get(key, &payload); err == nil && hit && payload.Provider == a.ID {
					results[i] = *payloadToResult(&payload, path, file.ID, opts.MaxDiagnostics)
					sink.OnEvent(pipeline.Event{File: path, Status: pipeline.StatusCached, Elapsed: time.Since(started)})
					return nil
				}

				res := TransformFile(file, a, opts.MaxDiagnostics)
				res.Path = path
				results[i] = *res

				if !res.Failed() {
					// Ошибка записи кэша не фатальна для прогона.
					_ = opts.Cache.Put(key, resultToPayload(res, a.ID))
				}

				status := pipeline.StatusDone
				if res.Failed() {
					status = pipeline.StatusError
				}
				sink.OnEvent(pipeline.Event{File: path, Stage: pipeline.StageInject, Status: status, Elapsed: time.Since(started)})
				return nil
			}
		}(i, path))
	}

	if err := g.Wait(); err != nil {
		return run, err
	}
	run.Files = results
	for i := range results {
		for _, stage := range []pipeline.Stage{pipeline.StageScan, pipeline.StageRewrite, pipeline.StageInject} {
			if results[i].Timings.Has(stage) {
				run.Timings.Add(stage, results[i].Timings.Duration(stage))
			}
		}
	}
	return run, nil
}

// TransformFile runs scan, rewrite and inject for a single file.
// Files with error diagnostics produce no output; files without agnostic
// calls pass through unchanged.
func TransformFile(file *source.File, a *adapter.ProviderAdapter, maxDiagnostics int) *FileResult {
	res := &FileResult{Path: file.Path, FileID: file.ID}

	started := time.Now()
	scanRes := scanner.Scan(file, maxDiagnostics)
	res.Timings.Set(pipeline.StageScan, time.Since(started))
	res.Bag = scanRes.Bag
	res.Sites = len(scanRes.Sites)
	if res.Bag.HasErrors() {
		return res
	}
	if len(scanRes.Sites) == 0 {
		res.Output = file.RawContent()
		return res
	}

	started = time.Now()
	planner := rewriter.NewPlanner(a)
	var edits []rewriter.Edit
	usedOps := make(map[string]struct{})
	for i := range scanRes.Sites {
		site := &scanRes.Sites[i]
		siteEdits, d := planner.Plan(site)
		if d != nil {
			res.Bag.Add(*d)
			continue
		}
		edits = append(edits, siteEdits...)
		usedOps[site.Op.Name] = struct{}{}
	}
	if res.Bag.HasErrors() {
		return res
	}

	// Склеиваем по исходным байтам: нетронутые строки сохраняют свои
	// \r\n и BOM как на диске.
	for i := range edits {
		edits[i].Span = file.RawSpan(edits[i].Span)
	}
	out, err := rewriter.Apply(file.RawContent(), edits)
	if err != nil {
		res.Bag.Add(diag.NewError(diag.RewriteInternal, source.Span{File: file.ID}, err.Error()))
		return res
	}
	res.Timings.Set(pipeline.StageRewrite, time.Since(started))

	res.UsedOps = make([]string, 0, len(usedOps))
	for op := range usedOps {
		res.UsedOps = append(res.UsedOps, op)
	}
	sort.Strings(res.UsedOps)

	started = time.Now()
	out, err = inject.Inject(out, a, res.UsedOps)
	if err != nil {
		res.Bag.Add(diag.NewError(diag.RewriteInternal, source.Span{File: file.ID}, err.Error()))
		return res
	}

	// Висящие warning-вызовы продолжают ссылаться на agnostic-пакет;
	// prune убирает импорт только когда ссылок не осталось.
	out, err = inject.PruneAgnosticImport(out)
	if err != nil {
		res.Bag.Add(diag.NewError(diag.RewriteInternal, source.Span{File: file.ID}, err.Error()))
		return res
	}

	res.Timings.Set(pipeline.StageInject, time.Since(started))

	res.Output = out
	res.Changed = true
	return res
}
