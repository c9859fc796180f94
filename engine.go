package tudump

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/jward/tudump/internal/astdump"
	"github.com/jward/tudump/internal/compdb"
	"github.com/jward/tudump/internal/dump"
	"github.com/jward/tudump/internal/outdir"
	"github.com/jward/tudump/internal/runtime"
	"github.com/jward/tudump/internal/stdflag"
	"github.com/jward/tudump/internal/store"
)

// Engine runs the tudump pipeline: load and rewrite the compilation
// database, prepare the output directory, save the database, then dump
// every selected build action.
type Engine struct {
	fs           afero.Fs
	tool         string
	launcher     dump.Launcher // nil means derive from tool
	logger       *slog.Logger
	filter       *runtime.Filter
	manifestPath string
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem the database, output directory and artifacts
// live on. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(e *Engine) {
		e.fs = fsys
	}
}

// WithTool sets the AST-dump executable. The name "builtin" selects the
// in-process tree-sitter dumper.
func WithTool(tool string) Option {
	return func(e *Engine) {
		e.tool = tool
	}
}

// WithLauncher overrides how dumps are started. The tool name is then only
// used as a label in the manifest.
func WithLauncher(l dump.Launcher) Option {
	return func(e *Engine) {
		e.launcher = l
	}
}

// WithLogger sets the structured logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithFilter restricts dumping to build actions the Risor expression
// selects. The database rewrite always covers every action.
func WithFilter(expr string) Option {
	return func(e *Engine) {
		e.filter = runtime.NewFilter(expr)
	}
}

// WithManifest records each run in a SQLite manifest at path.
func WithManifest(path string) Option {
	return func(e *Engine) {
		e.manifestPath = path
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		fs:     afero.NewOsFs(),
		tool:   dump.DefaultTool,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.launcher == nil {
		if e.tool == astdump.ToolName {
			e.launcher = astdump.NewLauncher(e.fs)
		} else {
			e.launcher = dump.ExecLauncher{Tool: e.tool}
		}
	}
	return e
}

// Request names the inputs of one run.
type Request struct {
	Database  string           // compilation database path; rewritten in place
	Standard  stdflag.Standard // standard forced onto every command
	OutputDir string           // must not exist yet
}

// Report describes a finished run.
type Report struct {
	Actions      int
	Selected     int
	Started      int
	LaunchFailed int
	Artifacts    []string
	RunID        int64 // manifest run id, 0 without a manifest
	Duration     time.Duration
}

// Run executes one request. Errors are returned for a malformed database
// (*compdb.ParseError), a pre-existing output directory
// (*outdir.AlreadyExistsError), filter failures and filesystem failures of
// tudump itself. Failures of the dump tool never surface here.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()

	raw, err := afero.ReadFile(e.fs, req.Database)
	if err != nil {
		return nil, fmt.Errorf("tudump: read database: %w", err)
	}
	loaded, err := compdb.Parse(req.Database, raw)
	if err != nil {
		return nil, err
	}

	rewritten := loaded.Clone()
	if err := rewritten.Rewrite(req.Standard); err != nil {
		return nil, fmt.Errorf("tudump: rewrite: %w", err)
	}
	e.logger.Debug("rewrote commands", "actions", len(rewritten), "std", string(req.Standard))

	selected, err := e.selectActions(ctx, rewritten)
	if err != nil {
		return nil, err
	}

	if err := outdir.Prepare(e.fs, req.OutputDir); err != nil {
		return nil, err
	}

	if err := compdb.Save(e.fs, req.Database, rewritten); err != nil {
		return nil, err
	}
	e.logger.Info("saved compilation database", "path", req.Database, "actions", len(rewritten))

	report := &Report{Actions: len(rewritten), Selected: len(selected)}

	var manifest *store.Store
	if e.manifestPath != "" {
		manifest, err = openManifest(e.manifestPath)
		if err != nil {
			return nil, err
		}
		defer manifest.Close()

		runID, err := e.recordRun(manifest, req, raw, rewritten, selected, start)
		if err != nil {
			return nil, err
		}
		report.RunID = runID
	}

	tasks := make([]dump.Task, len(selected))
	for i, idx := range selected {
		a := rewritten[idx]
		tasks[i] = dump.Task{Index: idx, File: a.File(), Directory: a.Directory()}
	}

	inv := dump.NewInvoker(e.launcher, dump.WithFs(e.fs), dump.WithLogger(e.logger))
	res, err := inv.Run(ctx, req.OutputDir, tasks)
	if res != nil {
		report.Started = res.Started
		report.LaunchFailed = res.LaunchFailed
		report.Artifacts = res.Artifacts
	}
	if err != nil {
		return report, err
	}

	if manifest != nil {
		if err := manifest.FinishRun(report.RunID, time.Now()); err != nil {
			return report, fmt.Errorf("tudump: manifest: %w", err)
		}
	}

	report.Duration = time.Since(start)
	e.logger.Debug("dumps finished",
		"started", report.Started,
		"launch_failed", report.LaunchFailed,
		"duration", report.Duration,
	)
	return report, nil
}

// selectActions returns the indexes of the actions to dump, in order.
func (e *Engine) selectActions(ctx context.Context, db compdb.Database) ([]int, error) {
	candidates := make([]runtime.Candidate, len(db))
	for i, a := range db {
		candidates[i] = runtime.Candidate{
			Index:     i,
			File:      a.File(),
			Directory: a.Directory(),
			Command:   a.Command(),
		}
	}
	selected, err := e.filter.Select(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("tudump: %w", err)
	}
	if skipped := len(db) - len(selected); skipped > 0 {
		e.logger.Info("filter skipped actions", "filter", e.filter.Source(), "skipped", skipped)
	}
	return selected, nil
}

func openManifest(path string) (*store.Store, error) {
	s, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("tudump: manifest: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("tudump: manifest: %w", err)
	}
	return s, nil
}

func (e *Engine) recordRun(s *store.Store, req Request, raw []byte, db compdb.Database, selected []int, start time.Time) (int64, error) {
	saved, err := compdb.Encode(db)
	if err != nil {
		return 0, err
	}

	run := &store.Run{
		DatabasePath: req.Database,
		Standard:     string(req.Standard),
		OutputDir:    req.OutputDir,
		Tool:         e.tool,
		Filter:       e.filter.Source(),
		HashBefore:   compdb.Fingerprint(raw),
		HashAfter:    compdb.Fingerprint(saved),
		ActionCount:  len(db),
		StartedAt:    start,
	}
	if _, err := s.BeginRun(run); err != nil {
		return 0, fmt.Errorf("tudump: manifest: %w", err)
	}

	dumps := make([]*store.Dump, len(selected))
	for i, idx := range selected {
		a := db[idx]
		dumps[i] = &store.Dump{
			Ordinal:   idx,
			File:      a.File(),
			Directory: a.Directory(),
			Command:   a.Command(),
			Artifact:  outdir.ArtifactPath(req.OutputDir, a.File()),
		}
	}
	if err := s.RecordDumps(run.ID, dumps); err != nil {
		return 0, fmt.Errorf("tudump: manifest: %w", err)
	}
	return run.ID, nil
}
