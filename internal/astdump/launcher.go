package astdump

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"

	"github.com/jward/tudump/internal/dump"
)

// ToolName selects the builtin dumper in place of an external executable.
const ToolName = "builtin"

// Launcher runs Dump for each job on its own goroutine, mirroring an
// external tool started without waiting.
type Launcher struct {
	fs afero.Fs
}

// NewLauncher returns a Launcher that reads sources from fsys.
func NewLauncher(fsys afero.Fs) *Launcher {
	return &Launcher{fs: fsys}
}

type process struct {
	wg  conc.WaitGroup
	err error
}

func (p *process) Wait() error {
	p.wg.Wait()
	return p.err
}

// Launch implements dump.Launcher. Relative sources resolve against the
// job's directory, as they would for a tool started there.
func (l *Launcher) Launch(ctx context.Context, job dump.Job) (dump.Process, error) {
	path := job.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(job.Directory, path)
	}

	p := &process{}
	p.wg.Go(func() {
		src, err := afero.ReadFile(l.fs, path)
		if err != nil {
			p.err = fmt.Errorf("astdump: read %s: %w", path, err)
			return
		}
		p.err = Dump(ctx, job.Output, job.File, src, LanguageFor(path))
	})
	return p, nil
}
