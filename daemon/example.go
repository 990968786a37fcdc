package daemon

import (
	"fmt"
	"os"

	"github.com/monobilisim/memguard/common"
	"github.com/monobilisim/memguard/common/mail"
	"github.com/monobilisim/memguard/enforcer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// File is the layout of memguard.yaml.
type File struct {
	CheckDurationInMinutes int                `yaml:"CheckDurationInMinutes"`
	TaskNameSizeList       []enforcer.Rule    `yaml:"TaskNameSizeList"`
	EmailSettings          mail.EmailSettings `yaml:"EmailSettings"`
	ConnectionStrings      map[string]string  `yaml:"ConnectionStrings,omitempty"`
}

func ExampleFile() File {
	return File{
		CheckDurationInMinutes: common.DefaultCheckDurationInMinutes,
		TaskNameSizeList: []enforcer.Rule{
			{Name: "notepad", MaxSizeInMB: 50},
			{Name: "w3wp", MaxSizeInMB: 2048},
		},
		EmailSettings: mail.EmailSettings{
			SmtpServer:   "smtp.example.com",
			SmtpPort:     587,
			EmailFrom:    "memguard@example.com",
			EmailTo:      "admin@example.com",
			EmailSubject: "Process terminated by memguard",
			Credential: mail.Credential{
				UserName: "memguard",
				Password: "change-me",
			},
		},
	}
}

// MarshalExample renders ExampleFile as yaml.
func MarshalExample() ([]byte, error) {
	return yaml.Marshal(ExampleFile())
}

func ConfigExample(cmd *cobra.Command, args []string) {
	out, err := MarshalExample()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Print(string(out))
}
