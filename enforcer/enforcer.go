package enforcer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/monobilisim/memguard/common/mail"
	"github.com/monobilisim/memguard/diag"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notifier delivers a rendered notification. *mail.Dispatcher satisfies it.
type Notifier interface {
	Send(body string, opts ...mail.SendOption) (bool, error)
}

// Deps are the collaborators an Enforcer works with. They are assembled once
// at startup and shared by every sweep.
type Deps struct {
	Table    ProcessTable
	Notifier Notifier
	// Resolver is optional; its answer only decorates the violation log.
	Resolver diag.Resolver
	// Now defaults to time.Now.
	Now func() time.Time
	// Hostname defaults to os.Hostname.
	Hostname string
}

// Enforcer applies rules to the live process list. A new Enforcer is built
// for every sweep; it must not be used concurrently.
type Enforcer struct {
	deps Deps

	// pids killed during the current sweep
	killed map[int32]bool
}

func New(deps Deps) *Enforcer {
	if deps.Table == nil {
		deps.Table = SystemTable{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Hostname == "" {
		deps.Hostname, _ = os.Hostname()
	}

	return &Enforcer{
		deps:   deps,
		killed: make(map[int32]bool),
	}
}

func procLogger(p ProcessSnapshot, rule Rule) zerolog.Logger {
	return log.With().
		Str("component", "enforcer").
		Str("process", p.Name).
		Int32("pid", p.Pid).
		Str("rule", rule.Name).
		Int64("max_size_mb", rule.MaxSizeInMB).
		Logger()
}

// Sweep enumerates processes once and enforces every rule against them.
// Failures on a single process are logged and skipped; only a failure to
// enumerate processes is returned.
func (e *Enforcer) Sweep(ctx context.Context, rules []Rule) (Report, error) {
	report := Report{Rules: len(rules)}

	procs, err := e.deps.Table.Processes(ctx)
	if err != nil {
		return report, fmt.Errorf("enumerating processes: %w", err)
	}
	report.Scanned = len(procs)

	for _, rule := range rules {
		if rule.MaxSizeInMB <= 0 {
			log.Warn().
				Str("component", "enforcer").
				Str("rule", rule.Name).
				Int64("max_size_mb", rule.MaxSizeInMB).
				Msg("Ignoring rule with non-positive MaxSizeInMB")
			continue
		}

		for _, p := range Match(rule, procs) {
			report.Matched++

			if e.killed[p.Pid] {
				continue
			}

			e.enforce(ctx, rule, p, &report)
		}
	}

	log.Debug().
		Str("component", "enforcer").
		Int("rules", report.Rules).
		Int("scanned", report.Scanned).
		Int("matched", report.Matched).
		Int("killed", report.Killed).
		Int("skipped", report.Skipped).
		Int("notified", report.Notified).
		Msg("Sweep finished")

	return report, nil
}

// Evaluate matches and measures processes like Sweep but never kills or
// notifies. Processes that could not be inspected carry Err.
func (e *Enforcer) Evaluate(ctx context.Context, rules []Rule) ([]Verdict, error) {
	procs, err := e.deps.Table.Processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating processes: %w", err)
	}

	var verdicts []Verdict
	for _, rule := range rules {
		if rule.MaxSizeInMB <= 0 {
			continue
		}
		for _, p := range Match(rule, procs) {
			verdicts = append(verdicts, e.inspect(ctx, rule, p))
		}
	}

	return verdicts, nil
}

// inspect re-checks liveness and measures p against rule.
func (e *Enforcer) inspect(ctx context.Context, rule Rule, p ProcessSnapshot) Verdict {
	v := Verdict{Rule: rule, Process: p}

	running, err := e.deps.Table.IsRunning(ctx, p.Pid)
	if err != nil {
		v.Err = err
		return v
	}
	if !running {
		v.Err = ErrProcessGone
		return v
	}

	resident, private, err := e.deps.Table.Memory(ctx, p.Pid)
	if err != nil {
		v.Err = err
		return v
	}

	v.Process.ResidentBytes = resident
	v.Process.PrivateBytes = private
	v.Violated = v.Process.TotalBytes() > rule.LimitBytes()
	return v
}

func logSkip(logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, ErrProcessGone):
		logger.Info().Err(err).Msg("Process exited before it could be handled, skipping")
	case errors.Is(err, ErrPermissionDenied):
		logger.Warn().Err(err).Msg("Not permitted to handle process, skipping")
	default:
		logger.Error().Err(err).Msg("Failed to handle process, skipping")
	}
}

func (e *Enforcer) enforce(ctx context.Context, rule Rule, p ProcessSnapshot, report *Report) {
	logger := procLogger(p, rule)

	v := e.inspect(ctx, rule, p)
	if v.Err != nil {
		report.Skipped++
		logSkip(logger, v.Err)
		return
	}

	residentMB, privateMB, totalMB := v.Process.DisplayMB()

	if !v.Violated {
		logger.Debug().
			Int64("total_mb", totalMB).
			Msg("Process within limit")
		return
	}

	warn := logger.Warn().
		Int64("resident_mb", residentMB).
		Int64("private_mb", privateMB).
		Int64("total_mb", totalMB)
	if e.deps.Resolver != nil {
		if pool, ok := e.deps.Resolver.Resolve(ctx, p.Pid); ok {
			warn = warn.Str("pool", pool)
		}
	}
	warn.Msg("Process exceeded its memory limit, terminating")

	if err := e.deps.Table.Kill(ctx, p.Pid); err != nil {
		report.Skipped++
		logSkip(logger, err)
		return
	}

	killedAt := e.deps.Now()
	e.killed[p.Pid] = true
	report.Killed++

	logger.Info().
		Time("killed_at", killedAt).
		Msg("Process terminated")

	if e.notify(logger, Notification{
		ProcessName: p.Name,
		Pid:         p.Pid,
		Hostname:    e.deps.Hostname,
		MaxSizeInMB: rule.MaxSizeInMB,
		ResidentMB:  residentMB,
		PrivateMB:   privateMB,
		TotalMB:     totalMB,
		KilledAt:    killedAt,
	}) {
		report.Notified++
	}
}

// notify sends n and reports whether it was delivered. The outcome is only logged.
func (e *Enforcer) notify(logger zerolog.Logger, n Notification) bool {
	if e.deps.Notifier == nil {
		return false
	}

	body, err := n.Render()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to render notification")
		return false
	}

	sent, err := e.deps.Notifier.Send(body)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("Notification not sent")
	case !sent:
		logger.Warn().Msg("Notification could not be delivered")
	default:
		logger.Info().Msg("Notification sent")
	}

	return sent && err == nil
}
