//go:build !unix

package shm

import "os"

// processAlive falls back to FindProcess on platforms without signal 0
// probing. FindProcess always succeeds on Unix-likes but errors for absent
// PIDs elsewhere, which is the best available signal.
func processAlive(pid uint32) bool {
	if pid == 0 {
		return false
	}
	_, err := os.FindProcess(int(pid))
	return err == nil
}
