package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/monobilisim/memguard/common"
	"github.com/monobilisim/memguard/common/confcache"
	"github.com/monobilisim/memguard/common/mail"
	"github.com/monobilisim/memguard/diag"
	"github.com/monobilisim/memguard/enforcer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewConfig loads the configuration file and assembles the collaborators
// shared by every sweep.
func NewConfig() (Config, error) {
	v, err := common.ConfInit(common.ConfName)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Cache: confcache.New(v),
		Deps: enforcer.Deps{
			Table:    enforcer.SystemTable{},
			Notifier: mail.New(mail.FileLoader(common.ConfName), nil),
			Resolver: diag.NewResolver(),
		},
	}, nil
}

func notifySystemd(state string) {
	sent, err := sddaemon.SdNotify(false, state)
	if err != nil {
		log.Debug().
			Err(err).
			Str("component", "systemd").
			Str("state", state).
			Msg("Failed to notify systemd")
		return
	}
	if sent {
		log.Debug().
			Str("component", "systemd").
			Str("state", state).
			Msg("Notified systemd")
	}
}

func Main(cmd *cobra.Command, args []string) {
	runOnce, _ := cmd.Flags().GetBool("once")

	if err := common.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer common.RemoveLockfile()

	cfg, err := NewConfig()
	if err != nil {
		log.Error().Err(err).Str("component", "daemon").Msg("Failed to load configuration")
		common.RemoveLockfile()
		os.Exit(1)
	}
	cfg.Once = runOnce

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("component", "daemon").
		Str("version", common.Version).
		Bool("once", runOnce).
		Time("started_at", time.Now()).
		Msg("memguard daemon starting")

	notifySystemd(sddaemon.SdNotifyReady)

	if err := Run(ctx, cfg); err != nil {
		log.Error().Err(err).Str("component", "daemon").Msg("Daemon stopped with error")
	}

	notifySystemd(sddaemon.SdNotifyStopping)

	log.Info().Str("component", "daemon").Msg("memguard daemon stopped")
}
