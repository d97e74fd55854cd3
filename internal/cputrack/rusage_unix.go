//go:build unix

package cputrack

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ProcessCPUTime returns user plus system time of the current process.
func ProcessCPUTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("getrusage: %w", err)
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
