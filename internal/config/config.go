// Package config loads daemon configuration from config.toml, the data
// directory's settings.json and the environment, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/smsdash/internal/paths"
)

// Webhook acknowledgment formats.
const (
	AckTwiML = "twiml"
	AckPlain = "plain"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config represents ~/.smsdash/config.toml.
type Config struct {
	DataDir string        `toml:"data_dir"`
	HTTP    HTTPConfig    `toml:"http"`
	Twilio  TwilioConfig  `toml:"twilio"`
	Owner   OwnerConfig   `toml:"owner"`
	Webhook WebhookConfig `toml:"webhook"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Relay   RelayConfig   `toml:"relay"`
}

type HTTPConfig struct {
	Listen              string `toml:"listen"`
	StaticDir           string `toml:"static_dir"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

type TwilioConfig struct {
	AccountSID   string `toml:"account_sid"`
	AuthToken    string `toml:"auth_token"`
	PhoneNumber  string `toml:"phone_number"`
	HistoryLimit int    `toml:"history_limit"`
}

// OwnerConfig names the operator's own phone, where inbound messages are forwarded.
type OwnerConfig struct {
	PhoneNumber string `toml:"phone_number"`
}

type WebhookConfig struct {
	Ack               string `toml:"ack"`
	ValidateSignature bool   `toml:"validate_signature"`
	PublicURL         string `toml:"public_url"`
}

type StorageConfig struct {
	Backend string `toml:"backend"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       bool   `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// RelayConfig enables republishing of live events to an AMQP exchange.
type RelayConfig struct {
	AMQPURL  string `toml:"amqp_url"`
	Exchange string `toml:"exchange"`
}

// Settings is the operator record kept beside the data files.
type Settings struct {
	OwnerPhoneNumber string `json:"ownerPhoneNumber"`
	// CredentialsRef points at a TOML file holding a [twilio] table,
	// relative to the data dir unless absolute.
	CredentialsRef string `json:"credentialsRef"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Listen:              ":3000",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 30,
		},
		Twilio:  TwilioConfig{HistoryLimit: 1000},
		Webhook: WebhookConfig{Ack: AckTwiML},
		Storage: StorageConfig{Backend: BackendJSON},
		Log:     LogConfig{Level: "info", File: true, MaxSizeMB: 10, MaxBackups: 3},
		Relay:   RelayConfig{Exchange: "smsdash.events"},
	}
}

// Load reads config from the given path over the defaults. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadSettings reads settings.json. A missing file yields zero settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

// Options tell Resolve where to look.
type Options struct {
	// ConfigPath is the TOML file. When empty the default path is tried and may be absent.
	ConfigPath string
	// DataDir overrides every other data dir source.
	DataDir string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Resolve builds the effective configuration: defaults, then config.toml,
// then settings.json from the data dir, then environment variables.
func Resolve(opts Options) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	path := opts.ConfigPath
	explicit := path != ""
	if !explicit {
		path = paths.ConfigPath()
	}
	cfg, err := Load(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	default:
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v := getenv("SMSDASH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	layout := paths.New(cfg.DataDir)
	cfg.DataDir = layout.Dir

	settings, err := LoadSettings(layout.Settings())
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := cfg.applySettings(settings, layout); err != nil {
		return nil, err
	}
	cfg.applyEnv(getenv)
	return cfg, nil
}

func (c *Config) applySettings(s Settings, layout paths.Layout) error {
	if s.OwnerPhoneNumber != "" {
		c.Owner.PhoneNumber = s.OwnerPhoneNumber
	}
	if s.CredentialsRef == "" {
		return nil
	}
	var creds struct {
		Twilio TwilioConfig `toml:"twilio"`
	}
	ref := layout.Resolve(s.CredentialsRef)
	if _, err := toml.DecodeFile(ref, &creds); err != nil {
		return fmt.Errorf("load credentials %s: %w", ref, err)
	}
	if creds.Twilio.AccountSID != "" {
		c.Twilio.AccountSID = creds.Twilio.AccountSID
	}
	if creds.Twilio.AuthToken != "" {
		c.Twilio.AuthToken = creds.Twilio.AuthToken
	}
	if creds.Twilio.PhoneNumber != "" {
		c.Twilio.PhoneNumber = creds.Twilio.PhoneNumber
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	set(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	set(&c.Twilio.PhoneNumber, "TWILIO_PHONE_NUMBER")
	set(&c.Owner.PhoneNumber, "OWNER_PHONE_NUMBER", "FORWARD_TO_NUMBER")
	set(&c.Relay.AMQPURL, "SMSDASH_AMQP_URL")

	if port := getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			host := c.HTTP.Listen
			if i := strings.LastIndex(host, ":"); i >= 0 {
				host = host[:i]
			}
			c.HTTP.Listen = host + ":" + port
		}
	}
}

// Validate reports settings the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Webhook.Ack {
	case AckTwiML, AckPlain:
	default:
		errs = append(errs, fmt.Errorf("webhook.ack %q: want %q or %q", c.Webhook.Ack, AckTwiML, AckPlain))
	}
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want %q or %q", c.Storage.Backend, BackendJSON, BackendSQLite))
	}
	if c.HTTP.Listen == "" {
		errs = append(errs, errors.New("http.listen is empty"))
	}
	if c.Twilio.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("twilio.history_limit %d is negative", c.Twilio.HistoryLimit))
	}
	if c.Webhook.ValidateSignature && c.Webhook.PublicURL == "" {
		errs = append(errs, errors.New("webhook.validate_signature requires webhook.public_url"))
	}
	return errors.Join(errs...)
}

// Layout returns the data dir layout for c.
func (c *Config) Layout() paths.Layout {
	return paths.New(c.DataDir)
}
