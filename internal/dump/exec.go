package dump

import (
	"context"
	"os/exec"
)

// DefaultTool is the AST-dump executable used when none is configured.
const DefaultTool = "ast-dump-tool"

// ExecLauncher runs an external executable as `Tool <file>` inside the
// action's directory. Its standard error goes to the null device.
type ExecLauncher struct {
	Tool string
}

// Launch starts the tool. ctx is not bound to the child: dumps have no
// cancellation or timeout and run until the tool exits on its own.
func (l ExecLauncher) Launch(_ context.Context, job Job) (Process, error) {
	tool := l.Tool
	if tool == "" {
		tool = DefaultTool
	}
	cmd := exec.Command(tool, job.File)
	cmd.Dir = job.Directory
	cmd.Stdout = job.Output
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}
