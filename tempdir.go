package luxmeter

import (
	"os"
)

// TempDir returns a new directory for capture tools to write frames into. It
// is created in /dev/shm when possible, so frames stay in memory, and in the
// OS default temporary directory otherwise.
func TempDir() (string, error) {
	// Only use /dev/shm if it already exists, to avoid creating a
	// directory in /dev when running as root.
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		dir, err := os.MkdirTemp("/dev/shm", "luxmeter")
		if err == nil {
			return dir, nil
		}
	}
	return os.MkdirTemp("", "luxmeter")
}
