// Package config loads the depthwatch configuration from a YAML file, a
// .env file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/IvanTurko/depthstream-go/depth"
	"github.com/IvanTurko/depthstream-go/internal/logx"
	"github.com/IvanTurko/depthstream-go/sdkerr"
)

const (
	subsys    = "config"
	envPrefix = "DEPTHSTREAM"
)

// Sink types.
const (
	SinkNone  = "none"
	SinkRedis = "redis"
	SinkKafka = "kafka"
)

// Config is the root configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app" yaml:"app"`
	Stream    StreamConfig    `mapstructure:"stream" yaml:"stream"`
	Reconnect ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Sink      SinkConfig      `mapstructure:"sink" yaml:"sink"`
}

type AppConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// StreamConfig selects the feed and the partial depth topics to follow.
type StreamConfig struct {
	BaseURL            string   `mapstructure:"base_url" yaml:"base_url"`
	Symbols            []string `mapstructure:"symbols" yaml:"symbols"`
	Depth              uint     `mapstructure:"depth" yaml:"depth"`
	Interval           string   `mapstructure:"interval" yaml:"interval"`
	HandshakeTimeoutMs int      `mapstructure:"handshake_timeout_ms" yaml:"handshake_timeout_ms"`
	// ReadTimeoutMs of 0 waits for frames forever.
	ReadTimeoutMs int   `mapstructure:"read_timeout_ms" yaml:"read_timeout_ms"`
	ReadLimit     int64 `mapstructure:"read_limit" yaml:"read_limit"`
}

type ReconnectConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	BaseMs  int     `mapstructure:"base_ms" yaml:"base_ms"`
	MaxMs   int     `mapstructure:"max_ms" yaml:"max_ms"`
	Jitter  float64 `mapstructure:"jitter" yaml:"jitter"`
	// MaxAttempts of 0 retries forever.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// SinkConfig selects where decoded updates are relayed to.
type SinkConfig struct {
	Type  string      `mapstructure:"type" yaml:"type"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

type RedisConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	Password      string `mapstructure:"password" yaml:"password"`
	DB            int    `mapstructure:"db" yaml:"db"`
	KeyPrefix     string `mapstructure:"key_prefix" yaml:"key_prefix"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
	TTLMs         int    `mapstructure:"ttl_ms" yaml:"ttl_ms"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// envAliases are the short variable names accepted besides the
// DEPTHSTREAM_<SECTION>_<KEY> form.
var envAliases = map[string]string{
	"stream.base_url": envPrefix + "_BASE_URL",
	"app.log_level":   envPrefix + "_LOG_LEVEL",
}

var defaults = map[string]any{
	"app.name":                    "depthwatch",
	"app.log_level":               "info",
	"stream.base_url":             "wss://stream.binance.com:9443",
	"stream.symbols":              []string{"ethbtc", "bnbeth"},
	"stream.depth":                5,
	"stream.interval":             "100ms",
	"stream.handshake_timeout_ms": 10000,
	"stream.read_timeout_ms":      0,
	"stream.read_limit":           0,
	"reconnect.enabled":           true,
	"reconnect.base_ms":           1000,
	"reconnect.max_ms":            30000,
	"reconnect.jitter":            0.2,
	"reconnect.max_attempts":      0,
	"sink.type":                   SinkNone,
	"sink.redis.addr":             "localhost:6379",
	"sink.redis.password":         "",
	"sink.redis.db":               0,
	"sink.redis.key_prefix":       "depth:",
	"sink.redis.channel_prefix":   "depth.",
	"sink.redis.ttl_ms":           60000,
	"sink.kafka.brokers":          []string{"localhost:9092"},
	"sink.kafka.topic":            "depth_updates",
}

// Load reads path (optional, "" skips it), then the given .env files (".env"
// when none is given; a missing file is not an error), then the environment.
//
// Errors are of kind sdkerr.ErrConfiguration.
func Load(path string, envFiles ...string) (*Config, error) {
	op := "Load"
	v := viper.New()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sdkerr.New(subsys, op, sdkerr.ErrConfiguration).
				WithMessagef("cannot read %s", path).
				WithCause(err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		if err := v.BindEnv(append([]string{key}, envNames(key)...)...); err != nil {
			return nil, sdkerr.New(subsys, op, sdkerr.ErrConfiguration).WithCause(err)
		}
	}

	if err := applyDotenv(v, envFiles); err != nil {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrConfiguration).
			WithMessage("cannot read .env").
			WithCause(err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrConfiguration).
			WithMessage("cannot decode config").
			WithCause(err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDotenv feeds .env values to viper for keys the real environment does
// not set, so the process environment always wins.
func applyDotenv(v *viper.Viper, files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	values := make(map[string]string)
	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		for k, val := range m {
			values[k] = val
		}
	}

	for key := range defaults {
		names := envNames(key)
		if inEnv(names) {
			continue
		}
		for _, name := range names {
			if val, ok := values[name]; ok {
				v.Set(key, val)
				break
			}
		}
	}
	return nil
}

// inEnv reports whether any of names is set in the process environment.
func inEnv(names []string) bool {
	for _, name := range names {
		if _, set := os.LookupEnv(name); set {
			return true
		}
	}
	return false
}

func envNames(key string) []string {
	names := []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	if alias, ok := envAliases[key]; ok {
		names = append(names, alias)
	}
	return names
}

func (c *Config) normalize() {
	// viper hands env-provided lists over as one space separated string
	c.Stream.Symbols = splitList(c.Stream.Symbols)
	c.Sink.Kafka.Brokers = splitList(c.Sink.Kafka.Brokers)
	c.Sink.Type = strings.ToLower(strings.TrimSpace(c.Sink.Type))
	if c.Sink.Type == "" {
		c.Sink.Type = SinkNone
	}
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if _, err := logx.ParseLevel(c.App.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("app.log_level: invalid level %q, want debug, info, warn or error", c.App.LogLevel))
	}

	if len(c.Stream.Symbols) == 0 {
		errs = append(errs, "stream.symbols: at least one symbol is required")
	}
	for i, s := range c.Stream.Symbols {
		if s == "" || strings.ContainsAny(s, "@/?&# ") {
			errs = append(errs, fmt.Sprintf("stream.symbols[%d]: invalid symbol %q", i, s))
		}
	}
	switch depth.DepthSize(c.Stream.Depth) {
	case depth.DepthLevel5, depth.DepthLevel10, depth.DepthLevel20:
	default:
		errs = append(errs, fmt.Sprintf("stream.depth: %d is not one of 5, 10, 20", c.Stream.Depth))
	}
	switch depth.UpdateInterval(c.Stream.Interval) {
	case depth.UpdateDefault, depth.Update100ms, depth.Update1000ms:
	default:
		errs = append(errs, fmt.Sprintf("stream.interval: %q is not one of \"\", 100ms, 1000ms", c.Stream.Interval))
	}
	if len(errs) == 0 {
		if _, err := c.StreamURL(); err != nil {
			errs = append(errs, fmt.Sprintf("stream.base_url: %v", err))
		}
	}
	if c.Stream.HandshakeTimeoutMs <= 0 {
		errs = append(errs, "stream.handshake_timeout_ms: must be positive")
	}
	if c.Stream.ReadTimeoutMs < 0 {
		errs = append(errs, "stream.read_timeout_ms: must not be negative")
	}
	if c.Stream.ReadLimit < 0 {
		errs = append(errs, "stream.read_limit: must not be negative")
	}

	if c.Reconnect.BaseMs <= 0 {
		errs = append(errs, "reconnect.base_ms: must be positive")
	}
	if c.Reconnect.MaxMs < c.Reconnect.BaseMs {
		errs = append(errs, "reconnect.max_ms: must not be below base_ms")
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		errs = append(errs, fmt.Sprintf("reconnect.jitter: %v is outside [0, 1]", c.Reconnect.Jitter))
	}
	if c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "reconnect.max_attempts: must not be negative")
	}

	switch c.Sink.Type {
	case SinkNone:
	case SinkRedis:
		if c.Sink.Redis.Addr == "" {
			errs = append(errs, "sink.redis.addr: required for the redis sink")
		}
		if c.Sink.Redis.TTLMs < 0 {
			errs = append(errs, "sink.redis.ttl_ms: must not be negative")
		}
	case SinkKafka:
		if len(c.Sink.Kafka.Brokers) == 0 {
			errs = append(errs, "sink.kafka.brokers: required for the kafka sink")
		}
		if c.Sink.Kafka.Topic == "" {
			errs = append(errs, "sink.kafka.topic: required for the kafka sink")
		}
	default:
		errs = append(errs, fmt.Sprintf("sink.type: %q is not one of none, redis, kafka", c.Sink.Type))
	}

	if len(errs) > 0 {
		return sdkerr.New(subsys, "Config.Validate", sdkerr.ErrConfiguration).
			WithMessage(strings.Join(errs, "; "))
	}
	return nil
}

// Topics returns the partial depth topic of every configured symbol.
func (c *Config) Topics() []string {
	topics := make([]string, len(c.Stream.Symbols))
	for i, s := range c.Stream.Symbols {
		topics[i] = depth.PartialDepthTopic(s, depth.DepthSize(c.Stream.Depth), depth.UpdateInterval(c.Stream.Interval))
	}
	return topics
}

// StreamURL returns the combined-stream address of the configured topics.
func (c *Config) StreamURL() (string, error) {
	return depth.CombinedStreamURL(c.Stream.BaseURL, c.Topics()...)
}

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Stream.HandshakeTimeoutMs) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Stream.ReadTimeoutMs) * time.Millisecond
}

// Dump writes the effective configuration as YAML. The redis password is masked.
func (c *Config) Dump(w io.Writer) error {
	masked := *c
	if masked.Sink.Redis.Password != "" {
		masked.Sink.Redis.Password = "******"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return err
	}
	return enc.Close()
}
