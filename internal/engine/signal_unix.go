//go:build unix

package engine

import "syscall"

// Run aria2c in its own process group so a terminal Ctrl+C reaches only us;
// the engine is stopped through Process.Stop.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminate(p osProcess) error {
	return p.Signal(syscall.SIGTERM)
}
