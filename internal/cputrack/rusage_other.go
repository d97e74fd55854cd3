//go:build !unix

package cputrack

import (
	"errors"
	"time"
)

func ProcessCPUTime() (time.Duration, error) {
	return 0, errors.New("cpu sampling is not supported on this platform")
}
