package enforcer

import (
	"bytes"
	"text/template"
)

const notificationTemplate = `Process "{{.ProcessName}}" (pid {{.Pid}}) on {{.Hostname}} was terminated by memguard.

Configured limit : {{.MaxSizeInMB}} MB
Memory in use    : {{.TotalMB}} MB (resident {{.ResidentMB}} MB + private {{.PrivateMB}} MB)
Terminated at    : {{.KilledAt.Format "2006-01-02 15:04:05 -0700"}}
`

var bodyTemplate = template.Must(template.New("notification").Parse(notificationTemplate))

// Render produces the plain text email body for n.
func (n Notification) Render() (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
