package enforcer

import (
	"errors"
	"time"
)

// MiB is the unit MaxSizeInMB is expressed in.
const MiB = 1024 * 1024

var (
	// ErrProcessGone means the process exited between enumeration and action.
	ErrProcessGone = errors.New("process no longer running")
	// ErrPermissionDenied means the process could not be inspected or killed.
	ErrPermissionDenied = errors.New("permission denied")
)

// Rule limits the memory of every process whose name contains Name.
type Rule struct {
	Name        string `mapstructure:"name" yaml:"Name"`
	MaxSizeInMB int64  `mapstructure:"maxsizeinmb" yaml:"MaxSizeInMB"`
}

// LimitBytes is the threshold a process must exceed to violate the rule.
func (r Rule) LimitBytes() uint64 {
	if r.MaxSizeInMB <= 0 {
		return 0
	}
	return uint64(r.MaxSizeInMB) * MiB
}

// ProcessSnapshot describes one live process during a single sweep.
type ProcessSnapshot struct {
	Pid           int32
	Name          string
	ResidentBytes uint64
	PrivateBytes  uint64
}

// TotalBytes is the value compared against a rule's limit.
func (p ProcessSnapshot) TotalBytes() uint64 {
	return p.ResidentBytes + p.PrivateBytes
}

// DisplayMB rounds resident and private memory to MB separately and sums
// them. It is only used for logs and messages and may differ slightly from
// TotalBytes/MiB.
func (p ProcessSnapshot) DisplayMB() (resident, private, total int64) {
	resident = roundMB(p.ResidentBytes)
	private = roundMB(p.PrivateBytes)
	return resident, private, resident + private
}

// Verdict is the outcome of checking one matched process against a rule.
type Verdict struct {
	Rule     Rule
	Process  ProcessSnapshot
	Violated bool
	Err      error
}

// Notification is what the administrator is told about a killed process.
type Notification struct {
	ProcessName string
	Pid         int32
	Hostname    string
	MaxSizeInMB int64
	ResidentMB  int64
	PrivateMB   int64
	TotalMB     int64
	KilledAt    time.Time
}

// Report summarizes one sweep.
type Report struct {
	Rules    int
	Scanned  int
	Matched  int
	Killed   int
	Skipped  int
	Notified int
}
