package mail

import (
	"fmt"
	"os"
	"time"

	"github.com/monobilisim/memguard/common"
	"github.com/spf13/cobra"
)

var MailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Email notification utilities",
}

var MailTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification using EmailSettings",
	Run: func(cmd *cobra.Command, args []string) {
		to, _ := cmd.Flags().GetString("to")
		subject, _ := cmd.Flags().GetString("subject")

		var opts []SendOption
		if to != "" {
			opts = append(opts, WithRecipient(to))
		}
		if subject != "" {
			opts = append(opts, WithSubject(subject))
		}

		hostname, _ := os.Hostname()
		body := fmt.Sprintf("This is a test notification from memguard %s on %s, sent at %s.\n",
			common.Version, hostname, time.Now().Format("2006-01-02 15:04:05 -0700"))

		sent, err := New(FileLoader(common.ConfName), nil).Send(body, opts...)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		if !sent {
			fmt.Fprintln(os.Stderr, "test notification could not be delivered, see the log for details")
			os.Exit(1)
		}

		fmt.Println("Test notification sent")
	},
}
