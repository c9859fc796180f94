package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcess finishes when release is closed (or immediately if nil).
type fakeProcess struct {
	release chan struct{}
	err     error
}

func (p *fakeProcess) Wait() error {
	if p.release != nil {
		<-p.release
	}
	return p.err
}

// fakeLauncher writes "<file>@<dir>" to each job's output and records the
// launch order.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	failFor  map[string]bool
	exitErr  error
	release  chan struct{}
}

func (l *fakeLauncher) Launch(_ context.Context, job Job) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failFor[job.File] {
		return nil, errors.New("no such tool")
	}
	l.launched = append(l.launched, job.File)
	if _, err := fmt.Fprintf(job.Output, "%s@%s", job.File, job.Directory); err != nil {
		return nil, err
	}
	return &fakeProcess{release: l.release, err: l.exitErr}, nil
}

func readArtifact(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_OneArtifactPerTask(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))

	l := &fakeLauncher{}
	inv := NewInvoker(l, WithFs(fsys))

	tasks := []Task{
		{Index: 0, File: "foo.cpp", Directory: "/proj"},
		{Index: 1, File: "/proj/src/bar.cc", Directory: "/proj/build"},
	}
	res, err := inv.Run(context.Background(), "/out", tasks)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Started)
	assert.Equal(t, 0, res.LaunchFailed)
	assert.Equal(t, []string{"foo.cpp", "/proj/src/bar.cc"}, l.launched)
	assert.Equal(t, []string{filepath.Join("/out", "foo.cpp"), filepath.Join("/out", "bar.cc")}, res.Artifacts)

	assert.Equal(t, "foo.cpp@/proj", readArtifact(t, fsys, "/out/foo.cpp"))
	assert.Equal(t, "/proj/src/bar.cc@/proj/build", readArtifact(t, fsys, "/out/bar.cc"))

	entries, err := afero.ReadDir(fsys, "/out")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_LaterDuplicateBasenameWins(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))

	inv := NewInvoker(&fakeLauncher{}, WithFs(fsys))
	tasks := []Task{
		{Index: 0, File: "a/util.cpp", Directory: "/one"},
		{Index: 1, File: "b/util.cpp", Directory: "/two"},
	}
	res, err := inv.Run(context.Background(), "/out", tasks)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Started)

	assert.Equal(t, "b/util.cpp@/two", readArtifact(t, fsys, "/out/util.cpp"))
	entries, err := afero.ReadDir(fsys, "/out")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_LaunchFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))

	l := &fakeLauncher{failFor: map[string]bool{"broken.cpp": true}}
	inv := NewInvoker(l, WithFs(fsys))

	res, err := inv.Run(context.Background(), "/out", []Task{
		{File: "broken.cpp", Directory: "/p"},
		{Index: 1, File: "ok.cpp", Directory: "/p"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Started)
	assert.Equal(t, 1, res.LaunchFailed)

	assert.Equal(t, "", readArtifact(t, fsys, "/out/broken.cpp"), "failed launch leaves an empty artifact")
	assert.Equal(t, "ok.cpp@/p", readArtifact(t, fsys, "/out/ok.cpp"))
}

func TestRun_ExitErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))

	inv := NewInvoker(&fakeLauncher{exitErr: errors.New("exit status 3")}, WithFs(fsys))
	res, err := inv.Run(context.Background(), "/out", []Task{{File: "x.cpp", Directory: "/p"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Started)
}

func TestRun_LaunchesAllBeforeAnyFinishes(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))

	release := make(chan struct{})
	l := &fakeLauncher{release: release}
	inv := NewInvoker(l, WithFs(fsys))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := inv.Run(context.Background(), "/out", []Task{
			{File: "a.cpp"}, {Index: 1, File: "b.cpp"}, {Index: 2, File: "c.cpp"},
		})
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.launched) == 3
	}, 5*time.Second, 10*time.Millisecond, "all dumps start while none has finished")

	select {
	case <-done:
		t.Fatal("Run returned before its dumps finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after dumps finished")
	}
}

func TestRun_ArtifactCreateFailure(t *testing.T) {
	t.Parallel()
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, err := NewInvoker(&fakeLauncher{}, WithFs(fsys)).Run(context.Background(), "/out", []Task{{File: "a.cpp"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump: creating artifact")
}

func TestRun_NoTasks(t *testing.T) {
	t.Parallel()
	res, err := NewInvoker(&fakeLauncher{}, WithFs(afero.NewMemMapFs())).Run(context.Background(), "/out", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Started)
	assert.Empty(t, res.Artifacts)
}

func TestExecLauncher_CapturesStdout(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "foo.cpp"), []byte("int main() {}\n"), 0o644))
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.Mkdir(out, 0o755))

	inv := NewInvoker(ExecLauncher{Tool: "cat"})
	res, err := inv.Run(context.Background(), out, []Task{{File: "foo.cpp", Directory: src}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Started)

	data, err := os.ReadFile(filepath.Join(out, "foo.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "int main() {}\n", string(data))
}

func TestExecLauncher_MissingToolIsSwallowed(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	inv := NewInvoker(ExecLauncher{Tool: "tudump-no-such-tool"})
	res, err := inv.Run(context.Background(), out, []Task{{File: "foo.cpp", Directory: out}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Started)
	assert.Equal(t, 1, res.LaunchFailed)

	info, err := os.Stat(filepath.Join(out, "foo.cpp"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
