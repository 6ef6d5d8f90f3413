//go:build !unix

package subproc

import (
	"fmt"
	"os/exec"
)

// reap falls back to plain os/exec reaping on non-unix platforms;
// rusage is unavailable there so UserTime/SysTime stay zero.
func reap(cmd *exec.Cmd) (Result, error) {
	err := cmd.Wait()
	var res Result
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return res, fmt.Errorf("waiting for process: %w", err)
	}
	return res, nil
}
