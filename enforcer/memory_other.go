//go:build !linux && !windows

package enforcer

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// privateBytes is not available here; only resident memory is enforced.
func privateBytes(_ context.Context, _ *process.Process, _ *process.MemoryInfoStat) (uint64, error) {
	return 0, nil
}
