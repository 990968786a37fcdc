package enforcer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessTable is the enforcer's view of the operating system's processes.
type ProcessTable interface {
	// Processes lists live processes with Pid and Name filled in.
	Processes(ctx context.Context) ([]ProcessSnapshot, error)
	// IsRunning reports whether pid still refers to a live process.
	IsRunning(ctx context.Context, pid int32) (bool, error)
	// Memory returns the resident and private bytes of pid.
	Memory(ctx context.Context, pid int32) (resident uint64, private uint64, err error)
	// Kill terminates pid immediately.
	Kill(ctx context.Context, pid int32) error
}

// SystemTable implements ProcessTable with gopsutil.
type SystemTable struct{}

func (SystemTable) Processes(ctx context.Context) ([]ProcessSnapshot, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ProcessSnapshot, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			log.Debug().
				Err(err).
				Str("component", "enforcer").
				Int32("pid", p.Pid).
				Msg("Skipping process whose name cannot be read")
			continue
		}
		out = append(out, ProcessSnapshot{Pid: p.Pid, Name: name})
	}

	return out, nil
}

func (SystemTable) IsRunning(ctx context.Context, pid int32) (bool, error) {
	running, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return false, classify(err)
	}
	return running, nil
}

func (SystemTable) Memory(ctx context.Context, pid int32) (uint64, uint64, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, 0, classify(err)
	}

	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, 0, classify(err)
	}

	private, err := privateBytes(ctx, p, mi)
	if err != nil {
		return 0, 0, classify(err)
	}

	return mi.RSS, private, nil
}

func (SystemTable) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return classify(err)
	}
	return classify(p.KillWithContext(ctx))
}

// classify tags err with ErrProcessGone or ErrPermissionDenied when it is one
// of the expected per-process failures.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProcessGone), errors.Is(err, ErrPermissionDenied):
		return err
	case errors.Is(err, process.ErrorProcessNotRunning),
		errors.Is(err, os.ErrProcessDone),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("%w: %w", ErrProcessGone, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}
