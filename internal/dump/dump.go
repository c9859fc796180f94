// Package dump runs the AST-dump tool once per build action and captures
// each run's standard output into an artifact file.
//
// All launches happen back-to-back in database order without waiting for
// earlier children. Run then waits for every child it started, so no
// artifact is still being written when it returns. The tool's exit status
// and standard error are never reported to the caller; they are only logged
// at debug level.
package dump

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"

	"github.com/jward/tudump/internal/outdir"
)

// Job is one dump to launch.
type Job struct {
	Index     int
	File      string    // source path as written in the database
	Directory string    // working directory for the tool
	Output    io.Writer // receives the tool's standard output
}

// Process is a started dump.
type Process interface {
	Wait() error
}

// Launcher starts a dump without waiting for it to finish.
type Launcher interface {
	Launch(ctx context.Context, job Job) (Process, error)
}

// Task identifies a build action to dump.
type Task struct {
	Index     int
	File      string
	Directory string
}

// Result summarizes a Run. Failures are counted, never returned.
type Result struct {
	Started      int
	LaunchFailed int
	Artifacts    []string
}

// Invoker fans tasks out to a Launcher.
type Invoker struct {
	fs       afero.Fs
	launcher Launcher
	logger   *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithFs sets the filesystem artifacts are created on.
func WithFs(fsys afero.Fs) Option {
	return func(inv *Invoker) {
		inv.fs = fsys
	}
}

// WithLogger sets the logger used for swallowed launch and exit failures.
func WithLogger(l *slog.Logger) Option {
	return func(inv *Invoker) {
		inv.logger = l
	}
}

// NewInvoker creates an Invoker that starts dumps with launcher.
func NewInvoker(launcher Launcher, opts ...Option) *Invoker {
	inv := &Invoker{
		fs:       afero.NewOsFs(),
		launcher: launcher,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Run launches one dump per task into dir/<basename(task.File)> and waits
// for all of them. Tasks whose artifacts share a base name run one after the
// other so the later task's output is what remains.
//
// The only error returned is a failure to create an artifact file; dumps
// already started are still waited for.
func (inv *Invoker) Run(ctx context.Context, dir string, tasks []Task) (*Result, error) {
	res := &Result{}
	var wg conc.WaitGroup
	defer wg.Wait()

	// pending holds, per artifact path, a channel closed once the dump
	// writing to it has finished.
	pending := make(map[string]chan struct{})

	for _, t := range tasks {
		path := outdir.ArtifactPath(dir, t.File)
		if prev, ok := pending[path]; ok {
			inv.logger.Debug("artifact name collision, waiting for previous dump", "artifact", path, "file", t.File)
			<-prev
		}

		f, err := inv.fs.Create(path)
		if err != nil {
			return res, fmt.Errorf("dump: creating artifact %s: %w", path, err)
		}
		res.Artifacts = append(res.Artifacts, path)

		proc, err := inv.launcher.Launch(ctx, Job{
			Index:     t.Index,
			File:      t.File,
			Directory: t.Directory,
			Output:    f,
		})
		if err != nil {
			inv.logger.Debug("dump launch failed", "file", t.File, "dir", t.Directory, "err", err)
			res.LaunchFailed++
			closeArtifact(inv.logger, f)
			continue
		}
		res.Started++

		done := make(chan struct{})
		pending[path] = done
		wg.Go(func() {
			defer close(done)
			defer closeArtifact(inv.logger, f)
			if err := proc.Wait(); err != nil {
				inv.logger.Debug("dump exited with error", "file", t.File, "err", err)
			}
		})
	}
	return res, nil
}

func closeArtifact(logger *slog.Logger, f afero.File) {
	if err := f.Close(); err != nil {
		logger.Debug("closing artifact", "artifact", f.Name(), "err", err)
	}
}
