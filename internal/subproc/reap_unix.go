//go:build unix

package subproc

import (
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// reap waits for cmd's child directly through unix.Wait4, so the
// rusage struct the kernel hands back on exit is available without
// Go's os/exec ever seeing it.
func reap(cmd *exec.Cmd) (Result, error) {
	pid := cmd.Process.Pid

	var status unix.WaitStatus
	var rusage unix.Rusage
	for {
		_, err := unix.Wait4(pid, &status, 0, &rusage)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("reaping pid %d: %w", pid, err)
		}
		break
	}

	res := Result{
		ExitCode: status.ExitStatus(),
		UserTime: timevalDuration(rusage.Utime),
		SysTime:  timevalDuration(rusage.Stime),
	}

	switch {
	case status.Signaled():
		return res, fmt.Errorf("killed by signal %s", status.Signal())
	case res.ExitCode != 0:
		return res, fmt.Errorf("exit status %d", res.ExitCode)
	default:
		return res, nil
	}
}

func timevalDuration(tv unix.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}
