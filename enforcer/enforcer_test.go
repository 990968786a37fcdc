package enforcer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/monobilisim/memguard/common"
	"github.com/monobilisim/memguard/common/mail"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProc struct {
	name     string
	resident uint64
	private  uint64
	gone     bool
	memErr   error
	killErr  error
}

type fakeTable struct {
	procs   map[int32]*fakeProc
	order   []int32
	listErr error
	kills   []int32
}

func newFakeTable() *fakeTable {
	return &fakeTable{procs: make(map[int32]*fakeProc)}
}

func (f *fakeTable) add(pid int32, p *fakeProc) *fakeTable {
	f.procs[pid] = p
	f.order = append(f.order, pid)
	return f
}

func (f *fakeTable) Processes(context.Context) ([]ProcessSnapshot, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []ProcessSnapshot
	for _, pid := range f.order {
		out = append(out, ProcessSnapshot{Pid: pid, Name: f.procs[pid].name})
	}
	return out, nil
}

func (f *fakeTable) IsRunning(_ context.Context, pid int32) (bool, error) {
	p, ok := f.procs[pid]
	return ok && !p.gone, nil
}

func (f *fakeTable) Memory(_ context.Context, pid int32) (uint64, uint64, error) {
	p := f.procs[pid]
	if p.memErr != nil {
		return 0, 0, p.memErr
	}
	return p.resident, p.private, nil
}

func (f *fakeTable) Kill(_ context.Context, pid int32) error {
	p := f.procs[pid]
	if p.killErr != nil {
		return p.killErr
	}
	p.gone = true
	f.kills = append(f.kills, pid)
	return nil
}

type fakeNotifier struct {
	sent   bool
	err    error
	bodies []string
}

func (f *fakeNotifier) Send(body string, _ ...mail.SendOption) (bool, error) {
	f.bodies = append(f.bodies, body)
	return f.sent, f.err
}

type fakeResolver struct {
	calls []int32
}

func (f *fakeResolver) Resolve(_ context.Context, pid int32) (string, bool) {
	f.calls = append(f.calls, pid)
	return "DefaultAppPool", true
}

var fixedNow = time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)

func newTestEnforcer(table *fakeTable, n Notifier) *Enforcer {
	return New(Deps{
		Table:    table,
		Notifier: n,
		Now:      func() time.Time { return fixedNow },
		Hostname: "web-01",
	})
}

func mib(n uint64) uint64 { return n * MiB }

func TestSweep_NotepadScenario(t *testing.T) {
	table := newFakeTable().add(100, &fakeProc{name: "notepad.exe", resident: mib(40), private: mib(20)})
	n := &fakeNotifier{sent: true}

	report, err := newTestEnforcer(table, n).Sweep(context.Background(), []Rule{{Name: "notepad", MaxSizeInMB: 50}})
	require.NoError(t, err)

	assert.Equal(t, []int32{100}, table.kills)
	assert.Equal(t, 1, report.Killed)
	assert.Equal(t, 1, report.Notified)
	require.Len(t, n.bodies, 1)
	assert.Contains(t, n.bodies[0], "notepad.exe")
	assert.Contains(t, n.bodies[0], "50")
	assert.Contains(t, n.bodies[0], "2026-10-18 12:30:00")
}

func TestSweep_AtOrBelowLimitUntouched(t *testing.T) {
	table := newFakeTable().
		add(1, &fakeProc{name: "worker", resident: mib(30), private: mib(20)}).
		add(2, &fakeProc{name: "worker", resident: mib(10), private: mib(5)})
	n := &fakeNotifier{sent: true}

	report, err := newTestEnforcer(table, n).Sweep(context.Background(), []Rule{{Name: "worker", MaxSizeInMB: 50}})
	require.NoError(t, err)

	assert.Empty(t, table.kills)
	assert.Empty(t, n.bodies)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 0, report.Killed)
}

func TestSweep_OneByteOverLimit(t *testing.T) {
	table := newFakeTable().add(1, &fakeProc{name: "worker", resident: mib(50), private: 1})

	_, err := newTestEnforcer(table, &fakeNotifier{sent: true}).Sweep(context.Background(), []Rule{{Name: "worker", MaxSizeInMB: 50}})
	require.NoError(t, err)

	assert.Equal(t, []int32{1}, table.kills)
}

func TestSweep_CaseAndWhitespaceInsensitiveSubstring(t *testing.T) {
	table := newFakeTable().
		add(1, &fakeProc{name: "Google Chrome Helper", resident: mib(300)}).
		add(2, &fakeProc{name: "chromedriver", resident: mib(300)}).
		add(3, &fakeProc{name: "firefox", resident: mib(300)})

	_, err := newTestEnforcer(table, &fakeNotifier{sent: true}).Sweep(context.Background(), []Rule{{Name: " Chrome ", MaxSizeInMB: 100}})
	require.NoError(t, err)

	assert.Equal(t, []int32{1, 2}, table.kills)
}

func TestSweep_EmptyPatternMatchesEveryProcess(t *testing.T) {
	table := newFakeTable().
		add(1, &fakeProc{name: "a", resident: mib(2)}).
		add(2, &fakeProc{name: "b", resident: mib(2)}).
		add(3, &fakeProc{name: "c", resident: mib(2)})

	report, err := newTestEnforcer(table, &fakeNotifier{sent: true}).Sweep(context.Background(), []Rule{{Name: "", MaxSizeInMB: 1}})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Matched)
	assert.Equal(t, []int32{1, 2, 3}, table.kills)
}

func TestSweep_PermissionFaultIsIsolated(t *testing.T) {
	table := newFakeTable().
		add(1, &fakeProc{name: "svc-a", resident: mib(500), memErr: fmt.Errorf("%w: reading status", ErrPermissionDenied)}).
		add(2, &fakeProc{name: "svc-b", resident: mib(500), killErr: classify(syscall.EPERM)}).
		add(3, &fakeProc{name: "svc-c", resident: mib(500)}).
		add(4, &fakeProc{name: "other", resident: mib(500)})

	rules := []Rule{
		{Name: "svc", MaxSizeInMB: 100},
		{Name: "other", MaxSizeInMB: 100},
	}

	report, err := newTestEnforcer(table, &fakeNotifier{sent: true}).Sweep(context.Background(), rules)
	require.NoError(t, err)

	assert.Equal(t, []int32{3, 4}, table.kills)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, report.Killed)
}

func TestSweep_ExitedProcessIsSkipped(t *testing.T) {
	table := newFakeTable().
		add(1, &fakeProc{name: "job", resident: mib(500), gone: true}).
		add(2, &fakeProc{name: "job", resident: mib(500)})

	report, err := newTestEnforcer(table, &fakeNotifier{sent: true}).Sweep(context.Background(), []Rule{{Name: "job", MaxSizeInMB: 100}})
	require.NoError(t, err)

	assert.Equal(t, []int32{2}, table.kills)
	assert.Equal(t, 1, report.Skipped)
}

func TestSweep_NotificationFailureDoesNotUndoKill(t *testing.T) {
	tests := []struct {
		name     string
		notifier *fakeNotifier
	}{
		{"transport failure", &fakeNotifier{sent: false}},
		{"configuration missing", &fakeNotifier{err: common.ErrConfigurationMissing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := newFakeTable().
				add(1, &fakeProc{name: "leaky", resident: mib(500)}).
				add(2, &fakeProc{name: "leaky", resident: mib(500)})

			report, err := newTestEnforcer(table, tt.notifier).Sweep(context.Background(), []Rule{{Name: "leaky", MaxSizeInMB: 100}})
			require.NoError(t, err)

			assert.Equal(t, []int32{1, 2}, table.kills)
			assert.Equal(t, 2, report.Killed)
			assert.Equal(t, 0, report.Notified)
			assert.Len(t, tt.notifier.bodies, 2)
		})
	}
}

func TestSweep_KillsAtMostOncePerSweep(t *testing.T) {
	table := newFakeTable().add(7, &fakeProc{name: "java", resident: mib(900)})
	n := &fakeNotifier{sent: true}

	rules := []Rule{
		{Name: "java", MaxSizeInMB: 100},
		{Name: "jav", MaxSizeInMB: 200},
	}

	report, err := newTestEnforcer(table, n).Sweep(context.Background(), rules)
	require.NoError(t, err)

	assert.Equal(t, []int32{7}, table.kills)
	assert.Equal(t, 2, report.Matched)
	assert.Len(t, n.bodies, 1)
}

func TestSweep_EnumerationFailureAbortsSweep(t *testing.T) {
	table := newFakeTable().add(1, &fakeProc{name: "x", resident: mib(500)})
	table.listErr = errors.New("proc not mounted")

	_, err := newTestEnforcer(table, &fakeNotifier{sent: true}).Sweep(context.Background(), []Rule{{Name: "x", MaxSizeInMB: 1}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "proc not mounted")
	assert.Empty(t, table.kills)
}

func TestSweep_NoRules(t *testing.T) {
	table := newFakeTable().add(1, &fakeProc{name: "x", resident: mib(500)})
	n := &fakeNotifier{sent: true}

	report, err := newTestEnforcer(table, n).Sweep(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, table.kills)
	assert.Empty(t, n.bodies)
	assert.Equal(t, 0, report.Matched)
}

func TestSweep_NonPositiveLimitIsIgnored(t *testing.T) {
	table := newFakeTable().add(1, &fakeProc{name: "x", resident: mib(500)})

	report, err := newTestEnforcer(table, &fakeNotifier{sent: true}).Sweep(context.Background(), []Rule{{Name: "x", MaxSizeInMB: 0}, {Name: "x", MaxSizeInMB: -5}})
	require.NoError(t, err)

	assert.Empty(t, table.kills)
	assert.Equal(t, 0, report.Matched)
}

func TestSweep_ResolverOnlyDecorates(t *testing.T) {
	table := newFakeTable().
		add(1, &fakeProc{name: "w3wp", resident: mib(500)}).
		add(2, &fakeProc{name: "w3wp", resident: mib(5)})
	r := &fakeResolver{}

	e := New(Deps{Table: table, Notifier: &fakeNotifier{sent: true}, Resolver: r})
	_, err := e.Sweep(context.Background(), []Rule{{Name: "w3wp", MaxSizeInMB: 100}})
	require.NoError(t, err)

	assert.Equal(t, []int32{1}, table.kills)
	assert.Equal(t, []int32{1}, r.calls)
}

func TestSweep_NilNotifier(t *testing.T) {
	table := newFakeTable().add(1, &fakeProc{name: "x", resident: mib(500)})

	report, err := New(Deps{Table: table}).Sweep(context.Background(), []Rule{{Name: "x", MaxSizeInMB: 1}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Killed)
	assert.Equal(t, 0, report.Notified)
}

func TestEvaluate_DoesNotKill(t *testing.T) {
	table := newFakeTable().
		add(1, &fakeProc{name: "db", resident: mib(400), private: mib(200)}).
		add(2, &fakeProc{name: "db", resident: mib(10)}).
		add(3, &fakeProc{name: "db", gone: true})
	n := &fakeNotifier{sent: true}

	verdicts, err := newTestEnforcer(table, n).Evaluate(context.Background(), []Rule{{Name: "db", MaxSizeInMB: 500}})
	require.NoError(t, err)

	require.Len(t, verdicts, 3)
	assert.True(t, verdicts[0].Violated)
	assert.Equal(t, mib(600), verdicts[0].Process.TotalBytes())
	assert.False(t, verdicts[1].Violated)
	assert.ErrorIs(t, verdicts[2].Err, ErrProcessGone)

	assert.Empty(t, table.kills)
	assert.Empty(t, n.bodies)
}

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"chrome", "Google Chrome Helper", true},
		{"CHROME", "chrome.exe", true},
		{"google chrome", "GoogleChrome", true},
		{"notepad", "notepad++.exe", true},
		{"", "anything", true},
		{"", "", true},
		{"sql", "postgres", false},
		{"w3wp", "w3w", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rule{Name: tt.pattern}.Matches(tt.name))
		})
	}
}

func TestDisplayMB_RoundsComponentsSeparately(t *testing.T) {
	p := ProcessSnapshot{ResidentBytes: mib(10) + MiB/2, PrivateBytes: mib(10) + MiB/2}

	resident, private, total := p.DisplayMB()
	assert.Equal(t, int64(11), resident)
	assert.Equal(t, int64(11), private)
	assert.Equal(t, int64(22), total)
	assert.Equal(t, mib(21), p.TotalBytes())
}

func TestNotificationRender(t *testing.T) {
	body, err := Notification{
		ProcessName: "notepad.exe",
		Pid:         42,
		Hostname:    "web-01",
		MaxSizeInMB: 50,
		ResidentMB:  40,
		PrivateMB:   20,
		TotalMB:     60,
		KilledAt:    fixedNow,
	}.Render()
	require.NoError(t, err)

	assert.Contains(t, body, `"notepad.exe" (pid 42) on web-01`)
	assert.Contains(t, body, "Configured limit : 50 MB")
	assert.Contains(t, body, "60 MB (resident 40 MB + private 20 MB)")
	assert.Contains(t, body, "2026-10-18 12:30:00 +0000")
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(process.ErrorProcessNotRunning), ErrProcessGone)
	assert.ErrorIs(t, classify(os.ErrProcessDone), ErrProcessGone)
	assert.ErrorIs(t, classify(syscall.ESRCH), ErrProcessGone)
	assert.ErrorIs(t, classify(syscall.EPERM), ErrPermissionDenied)
	assert.ErrorIs(t, classify(&os.PathError{Op: "open", Path: "/proc/1/status", Err: syscall.EACCES}), ErrPermissionDenied)

	other := errors.New("unexpected")
	assert.Equal(t, other, classify(other))
}
