package config

import (
	"os"
	"strings"
	"time"

	"domain-expiry/model"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type ConfigErr struct {
	errs []string
}

func (ce *ConfigErr) Add(s string) {
	ce.errs = append(ce.errs, s)
}

func (ce *ConfigErr) Error() string {
	return "config err: " + strings.Join(ce.errs, ",")
}

func (ce *ConfigErr) IsError() bool {
	return len(ce.errs) > 0
}

func NewConfigErr() ConfigErr {
	return ConfigErr{
		errs: []string{},
	}
}

// Duration reads Go duration strings such as "10s" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Sentry struct {
	Enabled bool   `yaml:"enabled"`
	Dsn     string `yaml:"dsn"`
}

type TLS struct {
	Timeout    Duration `yaml:"timeout"`
	CAFile     string   `yaml:"ca_file"`
	Port       int      `yaml:"port"`
	Nameserver string   `yaml:"nameserver"`
}

type Whois struct {
	Server            string   `yaml:"server"`
	Port              int      `yaml:"port"`
	Timeout           Duration `yaml:"timeout"`
	Fields            []string `yaml:"fields"`
	Layouts           []string `yaml:"layouts"`
	RegistrableDomain bool     `yaml:"registrable_domain"`
	Referral          bool     `yaml:"referral"`
	IANAServer        string   `yaml:"iana_server"`
	Rate              float64  `yaml:"rate"` // queries per second, 0 = unlimited
	Burst             int      `yaml:"burst"`
}

type Mail struct {
	Enabled   bool     `yaml:"enabled"`
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Sender    string   `yaml:"sender"`
	Recipient string   `yaml:"recipient"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"-"`
	CAFile    string   `yaml:"ca_file"`
	Timeout   Duration `yaml:"timeout"`
}

type Aliyun struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Subdomains      bool   `yaml:"subdomains"`
	AccessKeyID     string `yaml:"-"`
	AccessKeySecret string `yaml:"-"`
}

type Metrics struct {
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

type Serve struct {
	Listen string `yaml:"listen"`
}

type Config struct {
	Domains       []string `yaml:"domains"`
	ThresholdDays int      `yaml:"threshold_days"`
	Workers       int      `yaml:"workers"`
	Log           Log      `yaml:"log"`
	Sentry        Sentry   `yaml:"sentry"`
	TLS           TLS      `yaml:"tls"`
	Whois         Whois    `yaml:"whois"`
	Mail          Mail     `yaml:"mail"`
	Aliyun        Aliyun   `yaml:"aliyun"`
	Metrics       Metrics  `yaml:"metrics"`
	Serve         Serve    `yaml:"serve"`
}

// env holds the secrets that never live in the YAML file.
type env struct {
	MailPassword string `envconfig:"MAIL_PASSWORD"`
	SentryDsn    string `envconfig:"SENTRY_DSN"`
}

type aliyunEnv struct {
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	AccessKeySecret string `envconfig:"ACCESS_KEY_SECRET"`
}

// ReadConfig loads path, applies defaults and environment secrets.
func ReadConfig(path string) (Config, error) {
	// threshold_days: 0 is meaningful, so the default is set before unmarshalling.
	conf := Config{ThresholdDays: model.WarningThresholdDays}
	f, err := os.ReadFile(path)
	if err != nil {
		return conf, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(f, &conf); err != nil {
		return conf, errors.Wrap(err, "unmarshal config file")
	}
	if err := conf.loadEnv(); err != nil {
		return conf, err
	}
	conf.SetDefaults()
	return conf, nil
}

func (c *Config) loadEnv() error {
	var e env
	if err := envconfig.Process("expiry", &e); err != nil {
		return errors.Wrap(err, "read environment")
	}
	if e.MailPassword != "" {
		c.Mail.Password = e.MailPassword
	}
	if e.SentryDsn != "" {
		c.Sentry.Dsn = e.SentryDsn
	}

	var a aliyunEnv
	if err := envconfig.Process("alibaba_cloud", &a); err != nil {
		return errors.Wrap(err, "read environment")
	}
	c.Aliyun.AccessKeyID = a.AccessKeyID
	c.Aliyun.AccessKeySecret = a.AccessKeySecret
	return nil
}

func (c *Config) SetDefaults() {
	c.Domains = dedupe(c.Domains)
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = "error.log"
	}
	if c.TLS.Timeout == 0 {
		c.TLS.Timeout = Duration(model.Timeout)
	}
	if c.TLS.Port == 0 {
		c.TLS.Port = model.HTTPSPort
	}
	if c.Whois.Server == "" {
		c.Whois.Server = model.DefaultWhoisServer
	}
	if c.Whois.Port == 0 {
		c.Whois.Port = model.WhoisPort
	}
	if c.Whois.Timeout == 0 {
		c.Whois.Timeout = Duration(model.Timeout)
	}
	if len(c.Whois.Fields) == 0 {
		c.Whois.Fields = []string{"renewal date"}
	}
	if len(c.Whois.Layouts) == 0 {
		c.Whois.Layouts = []string{model.WhoisLayout}
	}
	if c.Whois.IANAServer == "" {
		c.Whois.IANAServer = model.DefaultIANAServer
	}
	if c.Whois.Burst <= 0 {
		c.Whois.Burst = 1
	}
	if c.Mail.Host == "" {
		c.Mail.Host = "smtp.gmail.com"
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 465
	}
	if c.Mail.Username == "" {
		c.Mail.Username = c.Mail.Sender
	}
	if c.Mail.Timeout == 0 {
		c.Mail.Timeout = Duration(30 * time.Second)
	}
	if c.Aliyun.Region == "" {
		c.Aliyun.Region = model.RegionID
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "domain_expiry"
	}
}

func (c *Config) Validate() error {
	ce := NewConfigErr()
	if len(c.Domains) == 0 && !c.Aliyun.Enabled {
		ce.Add("no domains configured")
	}
	if c.ThresholdDays < 0 {
		ce.Add("threshold_days cannot be negative")
	}
	if c.Whois.Rate < 0 {
		ce.Add("whois.rate cannot be negative")
	}
	if c.Mail.Enabled {
		if c.Mail.Sender == "" {
			ce.Add("mail.sender cannot be empty")
		}
		if c.Mail.Recipient == "" {
			ce.Add("mail.recipient cannot be empty")
		}
		if c.Mail.Password == "" {
			ce.Add("mail password cannot be empty (EXPIRY_MAIL_PASSWORD)")
		}
	}
	if c.Sentry.Enabled && c.Sentry.Dsn == "" {
		ce.Add("sentry dsn cannot be empty")
	}
	if c.Aliyun.Enabled && (c.Aliyun.AccessKeyID == "" || c.Aliyun.AccessKeySecret == "") {
		ce.Add("aliyun credentials cannot be empty (ALIBABA_CLOUD_ACCESS_KEY_ID, ALIBABA_CLOUD_ACCESS_KEY_SECRET)")
	}
	if ce.IsError() {
		return &ce
	}
	return nil
}

// MergeDomains appends extra domains that are not configured yet.
func (c *Config) MergeDomains(extra []string) {
	c.Domains = dedupe(append(c.Domains, extra...))
}

func dedupe(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(d), "."))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
