package reader

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/logger"
)

// Default timing values.
const (
	DefaultResponseTimeout = 500 * time.Millisecond // one-shot command reply
	DefaultReadTimeout     = 100 * time.Millisecond // single read inside the inventory loop
	DefaultPollInterval    = 100 * time.Millisecond // pause between inventory reads
	DefaultJoinTimeout     = 1 * time.Second        // wait for the inventory loop on stop

	DefaultReadBufferSize = 1024
)

// Range limits.
const (
	MinResponseTimeout = 50 * time.Millisecond
	MaxResponseTimeout = 30 * time.Second

	MinReadTimeout = 1 * time.Millisecond
	MaxReadTimeout = 5 * time.Second

	MaxPollInterval = 5 * time.Second

	MinJoinTimeout = 10 * time.Millisecond
	MaxJoinTimeout = 30 * time.Second

	MinReadBufferSize = 64
	MaxReadBufferSize = 64 * 1024
)

// ScanMode selects how an inventory is started.
type ScanMode int

const (
	// ContinuousScan polls until stopped.
	ContinuousScan ScanMode = iota
	// CountedScan polls a fixed number of rounds.
	CountedScan
)

// String returns string representation of the scan mode.
func (m ScanMode) String() string {
	switch m {
	case ContinuousScan:
		return "continuous"
	case CountedScan:
		return "counted"
	default:
		return "unknown"
	}
}

// Config holds the reader configuration. Create it with NewConfig.
type Config struct {
	layout epc.Layout

	responseTimeout time.Duration
	readTimeout     time.Duration
	pollInterval    time.Duration
	joinTimeout     time.Duration

	scanMode  ScanMode
	scanCount uint16

	readBufferSize int

	logger logger.Logger
}

// NewConfig creates a reader configuration. The default layout is Layout A
// with continuous scanning.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		layout:          epc.LayoutA,
		responseTimeout: DefaultResponseTimeout,
		readTimeout:     DefaultReadTimeout,
		pollInterval:    DefaultPollInterval,
		joinTimeout:     DefaultJoinTimeout,
		scanMode:        ContinuousScan,
		readBufferSize:  DefaultReadBufferSize,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Layout returns the EPC layout of the reader firmware.
func (cfg *Config) Layout() epc.Layout { return cfg.layout }

// ResponseTimeout returns how long a one-shot command waits for its reply.
func (cfg *Config) ResponseTimeout() time.Duration { return cfg.responseTimeout }

// ReadTimeout returns the bound of a single transport read.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// PollInterval returns the pause between inventory reads.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// JoinTimeout returns how long Stop waits for the inventory loop to exit.
func (cfg *Config) JoinTimeout() time.Duration { return cfg.joinTimeout }

// ScanMode returns the inventory scan mode.
func (cfg *Config) ScanMode() ScanMode { return cfg.scanMode }

// ScanCount returns the number of polling rounds for CountedScan.
func (cfg *Config) ScanCount() uint16 { return cfg.scanCount }

// ReadBufferSize returns the size of the transport read buffer.
func (cfg *Config) ReadBufferSize() int { return cfg.readBufferSize }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithLayout sets the EPC layout used to encode writes and decode reads.
func WithLayout(l epc.Layout) Option {
	return optFunc(func(cfg *Config) error {
		if l.Name() == "" {
			return errors.New("reader: layout must be set")
		}
		cfg.layout = l

		return nil
	})
}

// WithResponseTimeout sets how long a one-shot command waits for its reply.
func WithResponseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinResponseTimeout || d > MaxResponseTimeout {
			return fmt.Errorf("reader: response timeout %v out of range [%v, %v]", d, MinResponseTimeout, MaxResponseTimeout)
		}
		cfg.responseTimeout = d

		return nil
	})
}

// WithReadTimeout sets the bound of a single transport read. It only takes
// effect on transports that support read deadlines.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("reader: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithPollInterval sets the pause between inventory reads. Zero disables it.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxPollInterval {
			return fmt.Errorf("reader: poll interval %v out of range [0, %v]", d, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithJoinTimeout sets how long Stop waits for the inventory loop to exit.
func WithJoinTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinJoinTimeout || d > MaxJoinTimeout {
			return fmt.Errorf("reader: join timeout %v out of range [%v, %v]", d, MinJoinTimeout, MaxJoinTimeout)
		}
		cfg.joinTimeout = d

		return nil
	})
}

// WithContinuousScan makes inventories poll until stopped. This is the default.
func WithContinuousScan() Option {
	return optFunc(func(cfg *Config) error {
		cfg.scanMode = ContinuousScan
		cfg.scanCount = 0

		return nil
	})
}

// WithCountedScan makes inventories poll count rounds.
func WithCountedScan(count uint16) Option {
	return optFunc(func(cfg *Config) error {
		if count == 0 || count == 0xFFFF {
			return fmt.Errorf("reader: scan count %d out of range [1, %d]", count, 0xFFFE)
		}
		cfg.scanMode = CountedScan
		cfg.scanCount = count

		return nil
	})
}

// WithReadBufferSize sets the size of the transport read buffer.
func WithReadBufferSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinReadBufferSize || n > MaxReadBufferSize {
			return fmt.Errorf("reader: read buffer size %d out of range [%d, %d]", n, MinReadBufferSize, MaxReadBufferSize)
		}
		cfg.readBufferSize = n

		return nil
	})
}

// WithLogger sets the logger for the reader.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("reader: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
