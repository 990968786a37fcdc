//go:build linux

package enforcer

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// privateBytes is the resident memory not shared with other processes.
func privateBytes(ctx context.Context, p *process.Process, mi *process.MemoryInfoStat) (uint64, error) {
	ex, err := p.MemoryInfoExWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if ex.Shared >= mi.RSS {
		return 0, nil
	}
	return mi.RSS - ex.Shared, nil
}
