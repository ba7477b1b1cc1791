package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"seatwatch/lib/configutil"
	"seatwatch/lib/mailer"
	"seatwatch/lib/osutil"
	"seatwatch/lib/registrar"
	"seatwatch/lib/scrapers/dalonline"
	"seatwatch/services/seatwatch"
	"strings"
	"time"
)

const (
	defaultConfigName = "seatwatch.json5"
	smtpPasswordEnv   = "SEATWATCH_SMTP_PASSWORD"
	netPasswordEnv    = "SEATWATCH_NET_PASSWORD"
)

type emailConfig struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Attachments []string          `json:"attachments"`
	Smtp        mailer.SmtpConfig `json:"smtp"`
}

type registrationConfig struct {
	NetID    string            `json:"netid"`
	Password string            `json:"password"`
	Add      bool              `json:"add"`
	Drop     bool              `json:"drop"`
	CRNs     []string          `json:"crns"`
	DropRows []int             `json:"drop_rows"`
	Headless *bool             `json:"headless"`
	Timeout  int               `json:"timeout_seconds"`
	Portal   registrar.Portal  `json:"portal"`
	Locators map[string]string `json:"locators"`
}

type config struct {
	Course   string `json:"course"`
	Term     string `json:"term"`
	BaseUrl  string `json:"base_url"`
	Mode     string `json:"mode"`
	Interval int    `json:"interval_seconds"`
	Timeout  int    `json:"timeout_seconds"`

	Email        emailConfig        `json:"email"`
	Registration registrationConfig `json:"registration"`
}

func defaultConfig() config {
	headless := true
	return config{
		BaseUrl:  dalonline.DefaultBaseUrl,
		Mode:     string(seatwatch.ModeNotify),
		Interval: int(seatwatch.DefaultInterval / time.Second),
		Timeout:  30,
		Email: emailConfig{
			Smtp: mailer.SmtpConfig{
				Server: "smtp.gmail.com",
				Port:   mailer.DefaultPort,
			},
		},
		Registration: registrationConfig{
			Headless: &headless,
			Timeout:  30,
			Portal:   registrar.DefaultPortal(),
		},
	}
}

// loadConfig reads `path` when given, otherwise it looks for
// seatwatch.json5 from the cwd upwards. A missing file is not an error,
// every value can also come from flags.
func loadConfig(path string) (config, error) {
	var cfg config
	var err error
	if path != "" {
		cfg, err = configutil.ReadConfig[config](path)
	} else {
		cfg, err = configutil.ReadRecursively[config](defaultConfigName)
	}
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file found, using defaults and flags", "path", path)
		err = nil
	}
	if err != nil {
		return config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return configutil.WithDefaults(cfg, defaultConfig())
}

func (c config) query() (dalonline.CourseQuery, error) {
	if c.Course == "" {
		return dalonline.CourseQuery{}, fmt.Errorf("no course number given, set \"course\" in %s or pass --course", defaultConfigName)
	}
	if c.Term == "" {
		return dalonline.CourseQuery{}, fmt.Errorf("no term given, set \"term\" in %s or pass --term (e.g. 202010 for fall 2019)", defaultConfigName)
	}
	return dalonline.NewCourseQuery(c.BaseUrl, c.Course, c.Term)
}

// splitList splits a comma separated flag value, blank entries are dropped.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// secret resolves a password from its configured value, then the
// environment and finally a masked prompt.
func secret(configured, env, prompt string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if value, ok := os.LookupEnv(env); ok && value != "" {
		return value, nil
	}
	if !osutil.IsInteractive() {
		return "", fmt.Errorf("no password available, set %s", env)
	}
	return osutil.ReadSecret(prompt)
}

func (c config) smtpConfig() (mailer.SmtpConfig, error) {
	smtp := c.Email.Smtp
	if smtp.Username == "" {
		smtp.Username = c.Email.From
	}
	if smtp.Username == "" {
		return smtp, nil
	}
	password, err := secret(smtp.Password, smtpPasswordEnv, fmt.Sprintf("Password for %s: ", smtp.Username))
	if err != nil {
		return smtp, err
	}
	smtp.Password = password
	return smtp, nil
}

func (c config) locators() (registrar.Locators, error) {
	if len(c.Registration.Locators) == 0 {
		return registrar.DefaultLocators(), nil
	}
	return registrar.DefaultLocators().WithOverrides(c.Registration.Locators)
}

func (c config) registrarOptions() (registrar.Options, error) {
	r := c.Registration
	if r.NetID == "" {
		return registrar.Options{}, fmt.Errorf("no netid given, set \"registration.netid\" or pass --netid")
	}
	locators, err := c.locators()
	if err != nil {
		return registrar.Options{}, err
	}
	password, err := secret(r.Password, netPasswordEnv, fmt.Sprintf("NetID password for %s: ", r.NetID))
	if err != nil {
		return registrar.Options{}, err
	}
	opts := registrar.Options{
		Portal:   r.Portal,
		Locators: locators,
		Term:     c.Term,
		Credentials: registrar.Credentials{
			NetID:    r.NetID,
			Password: password,
		},
		Intent: registrar.Intent{
			Add:      r.Add,
			Drop:     r.Drop,
			CRNs:     r.CRNs,
			DropRows: r.DropRows,
		},
	}
	err = opts.Validate()
	if err != nil {
		return registrar.Options{}, fmt.Errorf("invalid registration: %w", err)
	}
	return opts, nil
}

func (c config) launcher() registrar.Launcher {
	return registrar.PlaywrightLauncher(registrar.PlaywrightOptions{
		Headless: c.Registration.Headless == nil || *c.Registration.Headless,
		Timeout:  time.Duration(c.Registration.Timeout) * time.Second,
	})
}
