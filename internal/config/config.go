package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/muezzin/internal/prefs"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MUEZZIN_"

//go:embed schema.cue
var schemaSource string

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.Set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Set parses s.
func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the daemon configuration.
type Config struct {
	Database           string   `yaml:"database" json:"database"`
	Timezone           string   `yaml:"timezone" json:"timezone"`
	LogLevel           string   `yaml:"log_level" json:"log_level"`
	SoundsDir          string   `yaml:"sounds_dir" json:"sounds_dir"`
	FajrSound          string   `yaml:"fajr_sound" json:"fajr_sound"`
	FallbackSound      string   `yaml:"fallback_sound" json:"fallback_sound"`
	LegacyPrefix       string   `yaml:"legacy_prefix" json:"legacy_prefix"`
	LookaheadDays      int      `yaml:"lookahead_days" json:"lookahead_days"`
	StartGrace         Duration `yaml:"start_grace" json:"start_grace"`
	WakeLockTimeout    Duration `yaml:"wake_lock_timeout" json:"wake_lock_timeout"`
	ExactAlarms        bool     `yaml:"exact_alarms" json:"exact_alarms"`
	ClockCheckInterval Duration `yaml:"clock_check_interval" json:"clock_check_interval"`
	ClockJumpThreshold Duration `yaml:"clock_jump_threshold" json:"clock_jump_threshold"`

	Preferences PreferencesConfig `yaml:"preferences" json:"preferences"`
	MQTT        MQTTConfig        `yaml:"mqtt" json:"mqtt"`
	API         APIConfig         `yaml:"api" json:"api"`
}

// PreferencesConfig selects the preference backend.
type PreferencesConfig struct {
	Backend string      `yaml:"backend" json:"backend"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig locates the Redis preference hash.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Key      string `yaml:"key" json:"key"`
}

// MQTTConfig configures the broker bridge.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Broker      string `yaml:"broker" json:"broker"`
	ClientID    string `yaml:"client_id" json:"client_id"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix"`
	QoS         int    `yaml:"qos" json:"qos"`
}

// APIConfig configures the HTTP control API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:           "muezzin.db",
		Timezone:           "Local",
		LogLevel:           "info",
		SoundsDir:          "sounds",
		FajrSound:          "fajr",
		FallbackSound:      "azan1",
		LegacyPrefix:       prefs.DefaultLegacyPrefix,
		LookaheadDays:      2,
		StartGrace:         Duration(5 * time.Second),
		WakeLockTimeout:    Duration(10 * time.Minute),
		ExactAlarms:        true,
		ClockCheckInterval: Duration(30 * time.Second),
		ClockJumpThreshold: Duration(2 * time.Second),
		Preferences: PreferencesConfig{
			Backend: BackendSQLite,
			Redis:   RedisConfig{Addr: "localhost:6379", Key: prefs.DefaultRedisKey},
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "muezzin",
			TopicPrefix: "muezzin",
			QoS:         1,
		},
		API: APIConfig{Enabled: true, Listen: "127.0.0.1:8787"},
	}
}

// Options locate the configuration sources. Empty paths are skipped.
type Options struct {
	File    string
	EnvFile string
}

// Load builds a Config from defaults, the YAML file, the .env file, and
// the process environment, in that order, then validates it.
// Process environment wins over .env.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", opts.File, err)
		}
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		m, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read env file: %w", err)
		}
		if m != nil {
			dotenv = m
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(field func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *field(c) = v; return nil }
}

func boolean(field func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func integer(field func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func duration(field func(c *Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error { return field(c).Set(v) }
}

var envVars = []envVar{
	{"DATABASE", str(func(c *Config) *string { return &c.Database })},
	{"TIMEZONE", str(func(c *Config) *string { return &c.Timezone })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{"SOUNDS_DIR", str(func(c *Config) *string { return &c.SoundsDir })},
	{"FAJR_SOUND", str(func(c *Config) *string { return &c.FajrSound })},
	{"FALLBACK_SOUND", str(func(c *Config) *string { return &c.FallbackSound })},
	{"LEGACY_PREFIX", str(func(c *Config) *string { return &c.LegacyPrefix })},
	{"LOOKAHEAD_DAYS", integer(func(c *Config) *int { return &c.LookaheadDays })},
	{"START_GRACE", duration(func(c *Config) *Duration { return &c.StartGrace })},
	{"WAKE_LOCK_TIMEOUT", duration(func(c *Config) *Duration { return &c.WakeLockTimeout })},
	{"EXACT_ALARMS", boolean(func(c *Config) *bool { return &c.ExactAlarms })},
	{"CLOCK_CHECK_INTERVAL", duration(func(c *Config) *Duration { return &c.ClockCheckInterval })},
	{"CLOCK_JUMP_THRESHOLD", duration(func(c *Config) *Duration { return &c.ClockJumpThreshold })},
	{"PREFERENCES_BACKEND", str(func(c *Config) *string { return &c.Preferences.Backend })},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.Preferences.Redis.Addr })},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.Preferences.Redis.Password })},
	{"REDIS_DB", integer(func(c *Config) *int { return &c.Preferences.Redis.DB })},
	{"REDIS_KEY", str(func(c *Config) *string { return &c.Preferences.Redis.Key })},
	{"MQTT_ENABLED", boolean(func(c *Config) *bool { return &c.MQTT.Enabled })},
	{"MQTT_BROKER", str(func(c *Config) *string { return &c.MQTT.Broker })},
	{"MQTT_CLIENT_ID", str(func(c *Config) *string { return &c.MQTT.ClientID })},
	{"MQTT_TOPIC_PREFIX", str(func(c *Config) *string { return &c.MQTT.TopicPrefix })},
	{"MQTT_QOS", integer(func(c *Config) *int { return &c.MQTT.QoS })},
	{"API_ENABLED", boolean(func(c *Config) *bool { return &c.API.Enabled })},
	{"API_LISTEN", str(func(c *Config) *string { return &c.API.Listen })},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok {
			continue
		}
		if err := ev.set(c, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, ev.name, err)
		}
	}
	return nil
}

// Validate checks c against the embedded CUE schema and resolves the
// timezone.
func (c Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	value := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Timezone. Empty and "Local" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level parses LogLevel; unknown values mean info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
