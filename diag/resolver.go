// Package diag looks up advisory information about a process, such as the
// IIS application pool a worker process serves. Nothing here influences
// which processes are killed.
package diag

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Resolver names the owner of a process, if it can tell.
type Resolver interface {
	Resolve(ctx context.Context, pid int32) (string, bool)
}

// Timeout bounds a single lookup.
var Timeout = 5 * time.Second

// NopResolver never resolves anything.
type NopResolver struct{}

func (NopResolver) Resolve(context.Context, int32) (string, bool) { return "", false }

// appcmd prints one line per worker process:
//
//	WP "1234" (applicationPool:DefaultAppPool)
var wpLine = regexp.MustCompile(`WP\s+"(\d+)"\s+\(applicationPool:([^)]+)\)`)

// parseWorkerProcesses returns the application pool serving pid.
func parseWorkerProcesses(output string, pid int32) (string, bool) {
	want := strconv.FormatInt(int64(pid), 10)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := wpLine.FindStringSubmatch(scanner.Text())
		if m == nil || m[1] != want {
			continue
		}
		if pool := strings.TrimSpace(m[2]); pool != "" {
			return pool, true
		}
	}

	return "", false
}
