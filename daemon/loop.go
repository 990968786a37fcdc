package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/monobilisim/memguard/common"
	"github.com/monobilisim/memguard/common/confcache"
	"github.com/monobilisim/memguard/enforcer"
	"github.com/rs/zerolog/log"
)

const (
	IntervalKey = "CheckDurationInMinutes"
	RulesKey    = "TaskNameSizeList"
)

type State int

const (
	Idle State = iota
	Sweeping
	Waiting
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sweeping:
		return "sweeping"
	case Waiting:
		return "waiting"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config wires the loop to its collaborators.
type Config struct {
	Cache *confcache.Cache
	Deps  enforcer.Deps

	// Once stops the loop after the first sweep.
	Once bool
	// IntervalUnit scales CheckDurationInMinutes; defaults to time.Minute.
	IntervalUnit time.Duration
	// OnState, when set, is called on every state transition.
	OnState func(State)
}

// Interval is the configured pause between sweeps. Non-positive values fall
// back to the default.
func (c Config) Interval() time.Duration {
	unit := c.IntervalUnit
	if unit <= 0 {
		unit = time.Minute
	}

	n := c.Cache.Int(IntervalKey, common.DefaultCheckDurationInMinutes)
	if n <= 0 {
		log.Warn().
			Str("component", "daemon").
			Int("configured", n).
			Int("default", common.DefaultCheckDurationInMinutes).
			Msg("Non-positive check interval configured, using default")
		n = common.DefaultCheckDurationInMinutes
	}

	return time.Duration(n) * unit
}

// Rules returns the configured rule list, empty when absent.
func (c Config) Rules() []enforcer.Rule {
	return confcache.List[enforcer.Rule](c.Cache, RulesKey)
}

// sweep runs one enforcement pass. Panics are turned into errors so that a
// faulty sweep never takes the loop down. The sweep does not observe ctx
// cancellation.
func sweep(ctx context.Context, cfg Config) (report enforcer.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()

	return enforcer.New(cfg.Deps).Sweep(context.WithoutCancel(ctx), cfg.Rules())
}

// Run sweeps, waits for the interval and sweeps again until ctx is cancelled.
// Cancellation is only observed while waiting; Run then returns nil. Sweep
// failures are logged and never end the loop.
func Run(ctx context.Context, cfg Config) error {
	state := Idle
	transition := func(s State) {
		log.Debug().
			Str("component", "daemon").
			Str("from", state.String()).
			Str("to", s.String()).
			Msg("State change")
		state = s
		if cfg.OnState != nil {
			cfg.OnState(s)
		}
	}

	if ctx.Err() != nil {
		transition(Stopped)
		return nil
	}

	for {
		transition(Sweeping)

		interval := cfg.Interval()
		started := time.Now()

		report, err := sweep(ctx, cfg)
		if err != nil {
			log.Error().
				Err(err).
				Str("component", "daemon").
				Msg("Sweep failed, no processes handled this cycle")
		} else {
			log.Info().
				Str("component", "daemon").
				Int("rules", report.Rules).
				Int("matched", report.Matched).
				Int("killed", report.Killed).
				Int("skipped", report.Skipped).
				Int("notified", report.Notified).
				Dur("took", time.Since(started)).
				Msg("Sweep completed")
		}

		if cfg.Once {
			transition(Stopped)
			return nil
		}

		transition(Waiting)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			transition(Stopped)
			return nil
		case <-timer.C:
		}
	}
}
