package common

import (
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcGrep reports whether a process whose name starts with prefix is
// running. When ignoreSelf is set the calling process is not considered.
func ProcGrep(prefix string, ignoreSelf bool) bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}

	self := int32(os.Getpid())

	for _, proc := range procs {
		if ignoreSelf && proc.Pid == self {
			continue
		}

		procName, err := proc.Name()
		if err != nil {
			continue
		}

		if strings.HasPrefix(procName, prefix) {
			return true
		}
	}

	return false
}
