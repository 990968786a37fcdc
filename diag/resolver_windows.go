//go:build windows

package diag

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// AppPoolResolver asks appcmd which IIS application pool a worker process belongs to.
type AppPoolResolver struct{}

// NewResolver returns the resolver for this platform.
func NewResolver() Resolver {
	return AppPoolResolver{}
}

func appcmdPath() string {
	windir := os.Getenv("windir")
	if windir == "" {
		windir = `C:\Windows`
	}
	return filepath.Join(windir, "system32", "inetsrv", "appcmd.exe")
}

func (AppPoolResolver) Resolve(ctx context.Context, pid int32) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, appcmdPath(), "list", "wp").Output()
	if err != nil {
		log.Debug().
			Err(err).
			Str("component", "diag").
			Int32("pid", pid).
			Msg("appcmd lookup failed")
		return "", false
	}

	return parseWorkerProcesses(string(out), pid)
}
