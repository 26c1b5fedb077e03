//go:build unix

package shm

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive probes process existence with signal 0. EPERM means the
// process exists but belongs to another user, which still counts as alive.
func processAlive(pid uint32) bool {
	if pid == 0 {
		return false
	}
	err := unix.Kill(int(pid), 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
