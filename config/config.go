// Package config loads the settings of the UHF bridge from a file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/logger"
	"github.com/arloliu/go-uhf/reader"
	"github.com/arloliu/go-uhf/serialport"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. UHF_SERIAL_NAME.
const EnvPrefix = "UHF"

// SerialConfig describes the serial line to the reader module.
type SerialConfig struct {
	Name        string        `mapstructure:"name"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// ReaderConfig holds the reader protocol settings.
type ReaderConfig struct {
	// Layout is "A" or "B".
	Layout          string        `mapstructure:"layout"`
	ResponseTimeout time.Duration `mapstructure:"responseTimeout"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	PollInterval    time.Duration `mapstructure:"pollInterval"`
	JoinTimeout     time.Duration `mapstructure:"joinTimeout"`
	// ScanCount selects a counted inventory of that many rounds; 0 polls
	// until stopped.
	ScanCount int `mapstructure:"scanCount"`
}

// RateLimitConfig limits commands sent to the hardware.
type RateLimitConfig struct {
	Enable bool    `mapstructure:"enable"`
	RPS    float64 `mapstructure:"rps"`
	Burst  int     `mapstructure:"burst"`
}

// HTTPConfig configures the HTTP bridge.
type HTTPConfig struct {
	Addr         string          `mapstructure:"addr"`
	ReadTimeout  time.Duration   `mapstructure:"readTimeout"`
	WriteTimeout time.Duration   `mapstructure:"writeTimeout"`
	AllowOrigin  string          `mapstructure:"allowOrigin"`
	RateLimit    RateLimitConfig `mapstructure:"rateLimit"`
}

// LumberjackConfig configures the rotating log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures the log level and outputs. An empty file name
// logs to stdout only.
type LoggingConfig struct {
	Level     string           `mapstructure:"level"`
	AddSource bool             `mapstructure:"addSource"`
	File      LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config is the top level configuration.
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Reader  ReaderConfig  `mapstructure:"reader"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load reads the configuration from a YAML, TOML or JSON file and the
// environment. When path is empty, UHF_CONFIG names the file; without it,
// uhf.yaml is looked up in the working directory and ./configs, and a missing
// file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("uhf")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.name", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", serialport.DefaultBaud)
	v.SetDefault("serial.readTimeout", serialport.DefaultReadTimeout.String())

	v.SetDefault("reader.layout", "A")
	v.SetDefault("reader.responseTimeout", reader.DefaultResponseTimeout.String())
	v.SetDefault("reader.readTimeout", reader.DefaultReadTimeout.String())
	v.SetDefault("reader.pollInterval", reader.DefaultPollInterval.String())
	v.SetDefault("reader.joinTimeout", reader.DefaultJoinTimeout.String())
	v.SetDefault("reader.scanCount", 0)

	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.allowOrigin", "*")
	v.SetDefault("http.rateLimit.enable", true)
	v.SetDefault("http.rateLimit.rps", 10)
	v.SetDefault("http.rateLimit.burst", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.addSource", false)
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the values that cannot be checked by their consumers
// alone.
func (c *Config) Validate() error {
	if _, err := epc.ParseLayout(c.Reader.Layout); err != nil {
		return fmt.Errorf("config: reader.layout: %w", err)
	}
	if c.Reader.ScanCount < 0 || c.Reader.ScanCount >= int(^uint16(0)) {
		return fmt.Errorf("config: reader.scanCount %d out of range [0, %d]", c.Reader.ScanCount, ^uint16(0)-1)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	if c.HTTP.RateLimit.Enable && (c.HTTP.RateLimit.RPS <= 0 || c.HTTP.RateLimit.Burst <= 0) {
		return errors.New("config: http.rateLimit needs positive rps and burst")
	}

	return nil
}

// SerialPort returns the serial line settings.
func (c *Config) SerialPort() serialport.Config {
	return serialport.Config{
		Name:        c.Serial.Name,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// ReaderOptions converts the reader section to reader options.
func (c *Config) ReaderOptions(l logger.Logger) ([]reader.Option, error) {
	layout, err := epc.ParseLayout(c.Reader.Layout)
	if err != nil {
		return nil, err
	}

	opts := []reader.Option{
		reader.WithLayout(layout),
		reader.WithResponseTimeout(c.Reader.ResponseTimeout),
		reader.WithReadTimeout(c.Reader.ReadTimeout),
		reader.WithPollInterval(c.Reader.PollInterval),
		reader.WithJoinTimeout(c.Reader.JoinTimeout),
	}
	if c.Reader.ScanCount > 0 {
		opts = append(opts, reader.WithCountedScan(uint16(c.Reader.ScanCount))) //nolint:gosec // range checked by Validate
	}
	if l != nil {
		opts = append(opts, reader.WithLogger(l))
	}

	return opts, nil
}

// NewLogger builds the logger described by the logging section. The returned
// closer releases the log file and may be nil.
func (c *Config) NewLogger() (logger.Logger, func() error, error) {
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	if c.Logging.File.Filename == "" {
		return logger.NewSlog(level, c.Logging.AddSource), nil, nil
	}

	w, closer := logger.RotatingOutput(logger.FileOutput{
		Filename:   c.Logging.File.Filename,
		MaxSizeMB:  c.Logging.File.MaxSizeMB,
		MaxBackups: c.Logging.File.MaxBackups,
		MaxAgeDays: c.Logging.File.MaxAgeDays,
		Compress:   c.Logging.File.Compress,
	})

	return logger.NewSlogWithOutput(level, c.Logging.AddSource, w), closer.Close, nil
}
