//go:build windows

package enforcer

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// privateBytes is the pagefile-backed commit charge, which gopsutil reports as VMS on Windows.
func privateBytes(_ context.Context, _ *process.Process, mi *process.MemoryInfoStat) (uint64, error) {
	return mi.VMS, nil
}
