package main

import (
	"fmt"
	"os"

	"github.com/monobilisim/memguard/common"
	"github.com/monobilisim/memguard/common/mail"
	"github.com/monobilisim/memguard/daemon"
	"github.com/spf13/cobra"
)

var MemguardVersion = "devel"
var RootCmd = &cobra.Command{
	Use:     "memguard",
	Short:   "Kill processes that exceed their configured memory limit",
	Version: MemguardVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.Version = MemguardVersion
		common.InitZerolog()
	},
}

func main() {
	var daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Run the enforcement loop until interrupted",
		Run:   daemon.Main,
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show matched processes and their limits without killing anything",
		Run:   daemon.Status,
	}

	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	var configExampleCmd = &cobra.Command{
		Use:   "example",
		Short: "Print an example memguard.yaml",
		Run:   daemon.ConfigExample,
	}

	RootCmd.PersistentFlags().StringVar(&common.ConfName, "config", common.ConfName, "Configuration file name, without extension")
	RootCmd.PersistentFlags().StringVar(&common.ConfDir, "config-dir", common.ConfDir, "Directory the configuration file is read from")

	/// Daemon
	RootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().Bool("once", false, "Run a single sweep and exit")
	daemonCmd.Flags().BoolVar(&common.IgnoreLockfile, "ignore-lockfile", false, "Run even if another instance holds the lockfile")

	/// Status
	RootCmd.AddCommand(statusCmd)

	/// Config
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExampleCmd)

	/// Mail
	RootCmd.AddCommand(mail.MailCmd)
	mail.MailCmd.AddCommand(mail.MailTestCmd)

	mail.MailTestCmd.Flags().StringP("to", "t", "", "Recipient, overrides EmailSettings.EmailTo")
	mail.MailTestCmd.Flags().StringP("subject", "s", "", "Subject, overrides EmailSettings.EmailSubject")

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
