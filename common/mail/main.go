package mail

import (
	"errors"
	"fmt"
	"strings"

	"github.com/monobilisim/memguard/common"
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// SectionKey is the configuration section holding EmailSettings.
const SectionKey = "EmailSettings"

type Credential struct {
	UserName string `mapstructure:"username" yaml:"UserName"`
	Password string `mapstructure:"password" yaml:"Password"`
}

type EmailSettings struct {
	SmtpServer   string     `mapstructure:"smtpserver" yaml:"SmtpServer"`
	SmtpPort     int        `mapstructure:"smtpport" yaml:"SmtpPort"`
	EmailFrom    string     `mapstructure:"emailfrom" yaml:"EmailFrom"`
	EmailTo      string     `mapstructure:"emailto" yaml:"EmailTo"`
	EmailSubject string     `mapstructure:"emailsubject" yaml:"EmailSubject"`
	Credential   Credential `mapstructure:"credential" yaml:"Credential"`
}

// Sender delivers messages over one SMTP session. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Loader returns the email settings to use for a single dispatch.
type Loader func() (EmailSettings, error)

// DialerFunc builds a Sender for the given settings.
type DialerFunc func(EmailSettings) Sender

// FileLoader reads EmailSettings from the named configuration file on every
// call, so edits to the file are picked up by the next dispatch.
func FileLoader(configName string) Loader {
	return func() (EmailSettings, error) {
		var settings EmailSettings
		err := common.LoadSection(configName, SectionKey, &settings)
		return settings, err
	}
}

// GomailDialer connects to SmtpServer:SmtpPort, upgrading to TLS with
// STARTTLS when the server offers it (implicit TLS on port 465), and
// authenticates when a user name is configured.
func GomailDialer(settings EmailSettings) Sender {
	return gomail.NewDialer(settings.SmtpServer, settings.SmtpPort, settings.Credential.UserName, settings.Credential.Password)
}

// Dispatcher sends notification emails. It reports delivery as a boolean and
// only returns an error when its configuration cannot be loaded.
type Dispatcher struct {
	load Loader
	dial DialerFunc
}

// New returns a Dispatcher. A nil dial uses GomailDialer.
func New(load Loader, dial DialerFunc) *Dispatcher {
	if dial == nil {
		dial = GomailDialer
	}
	return &Dispatcher{load: load, dial: dial}
}

type sendOptions struct {
	to      string
	subject string
}

// SendOption overrides a configured default for one message.
type SendOption func(*sendOptions)

// WithRecipient replaces EmailTo for this message.
func WithRecipient(to string) SendOption {
	return func(o *sendOptions) { o.to = to }
}

// WithSubject replaces EmailSubject for this message.
func WithSubject(subject string) SendOption {
	return func(o *sendOptions) { o.subject = subject }
}

// splitAddresses accepts comma or semicolon separated recipient lists.
func splitAddresses(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ';'
	})

	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Send delivers body as a plain text email. Settings are loaded fresh for
// every call; a missing or unreadable EmailSettings section is returned as an
// error. Every other failure is logged and reported as false. There is no
// retry.
func (d *Dispatcher) Send(body string, opts ...SendOption) (sent bool, err error) {
	settings, err := d.load()
	if err != nil {
		log.Error().
			Err(err).
			Str("component", "mail").
			Msg("Email settings could not be loaded")
		return false, fmt.Errorf("loading %s: %w", SectionKey, err)
	}

	o := sendOptions{to: settings.EmailTo, subject: settings.EmailSubject}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.With().
		Str("component", "mail").
		Str("smtp_server", settings.SmtpServer).
		Int("smtp_port", settings.SmtpPort).
		Str("to", o.to).
		Str("subject", o.subject).
		Logger()

	recipients := splitAddresses(o.to)
	if settings.SmtpServer == "" || settings.EmailFrom == "" || len(recipients) == 0 {
		logger.Error().Msg("Email settings are incomplete, notification not sent")
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Msg("Sending email panicked, notification dropped")
			sent, err = false, nil
		}
	}()

	m := gomail.NewMessage()
	m.SetHeader("From", settings.EmailFrom)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", o.subject)
	m.SetBody("text/plain", body)

	if err := d.dial(settings).DialAndSend(m); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to send email, notification dropped")
		return false, nil
	}

	logger.Info().Msg("Email sent")
	return true, nil
}

// IsConfigurationMissing reports whether err means the EmailSettings section is absent.
func IsConfigurationMissing(err error) bool {
	return errors.Is(err, common.ErrConfigurationMissing)
}
