package common

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Version is overridden at build time with -ldflags.
var Version = "devel"

var TmpDir = filepath.Join(os.TempDir(), "mono")
var IgnoreLockfile bool // Flag to ignore lockfile check

const lockfileName = "memguard.lock"

func lockfilePath() string {
	return filepath.Join(TmpDir, lockfileName)
}

func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// ConvertBytes renders a byte count with a binary unit suffix.
func ConvertBytes(bytes uint64) string {
	var sizes = []string{"B", "KB", "MB", "GB", "TB", "EB"}

	if bytes == 0 {
		return "0 B"
	}

	if bytes > uint64(math.MaxInt64) {
		bytes = uint64(math.MaxInt64)
	}
	floatBytes := float64(bytes)
	var i int

	for i = 0; floatBytes >= 1024 && i < len(sizes)-1; i++ {
		floatBytes /= 1024
	}

	// Two decimals from MB up
	if i >= 2 {
		return fmt.Sprintf("%.2f %s", floatBytes, sizes[i])
	}

	return fmt.Sprintf("%d %s", int64(floatBytes), sizes[i])
}

func RemoveLockfile() {
	if IgnoreLockfile {
		return
	}
	os.Remove(lockfilePath())
}

// Init prepares the temporary directory and takes the lockfile so that only
// one memguard daemon runs per host. A lockfile left behind by a process that
// is no longer running is removed.
func Init() error {
	if err := os.MkdirAll(TmpDir, 0755); err != nil {
		return fmt.Errorf("creating tmp directory %s: %w", TmpDir, err)
	}

	lock := lockfilePath()

	if FileExists(lock) {
		if !ProcGrep("memguard", true) {
			os.Remove(lock)
			log.Debug().
				Str("component", "lockfile").
				Str("action", "cleanup").
				Str("file", lock).
				Msg("Removed stale lockfile")
		} else if !IgnoreLockfile {
			return fmt.Errorf("memguard is already running (lockfile %s exists)", lock)
		} else {
			log.Debug().
				Str("component", "lockfile").
				Str("action", "ignore").
				Bool("ignore_flag", true).
				Msg("Ignoring existing lockfile due to --ignore-lockfile flag")
		}
	}

	if !IgnoreLockfile {
		file, err := os.Create(lock)
		if err != nil {
			log.Error().
				Err(err).
				Str("component", "lockfile").
				Str("action", "create").
				Str("file", lock).
				Msg("Failed to create lockfile")
		} else {
			file.Close()
			log.Debug().
				Str("component", "lockfile").
				Str("action", "create").
				Str("file", lock).
				Msg("Created lockfile successfully")
		}
	}

	log.Debug().
		Str("component", "init").
		Str("tmp_dir", TmpDir).
		Bool("ignore_lockfile", IgnoreLockfile).
		Msg("Memguard initialization completed")

	return nil
}
