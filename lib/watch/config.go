package watch

import (
	"fmt"
	"strings"
	"time"
)

// Default polling parameters.
const (
	DefaultMinInterval       = 1 * time.Second
	DefaultMaxInterval       = 30 * time.Second
	DefaultLatencyMultiplier = 20.0
	DefaultReadTimeout       = 10 * time.Second
)

// Config controls the polling cadence of a Poller.
//
// The interval between two reads of a subscription is the smoothed read latency
// multiplied by LatencyMultiplier, bounded by MinInterval and MaxInterval. Slow
// service responses therefore stretch the interval and fast responses shrink it.
type Config struct {
	// MinInterval is the floor of the poll interval, also used before the first latency sample.
	MinInterval time.Duration
	// MaxInterval is the ceiling of the poll interval.
	MaxInterval time.Duration
	// LatencyMultiplier scales the average read latency into the poll interval.
	LatencyMultiplier float64
	// ReadTimeout bounds a single read.
	ReadTimeout time.Duration
}

// DefaultConfig returns the default polling configuration.
func DefaultConfig() Config {
	return Config{
		MinInterval:       DefaultMinInterval,
		MaxInterval:       DefaultMaxInterval,
		LatencyMultiplier: DefaultLatencyMultiplier,
		ReadTimeout:       DefaultReadTimeout,
	}
}

// Normalize replaces unset values with defaults and swaps inverted bounds.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.MinInterval <= 0 {
		c.MinInterval = def.MinInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.MinInterval > c.MaxInterval {
		c.MinInterval, c.MaxInterval = c.MaxInterval, c.MinInterval
	}
	if c.LatencyMultiplier <= 0 {
		c.LatencyMultiplier = def.LatencyMultiplier
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	return c
}

// Interval derives the poll interval from an average latency in seconds.
func (c Config) Interval(avgLatencySeconds float64) time.Duration {
	d := time.Duration(avgLatencySeconds * c.LatencyMultiplier * float64(time.Second))
	if d < c.MinInterval {
		return c.MinInterval
	}
	if d > c.MaxInterval {
		return c.MaxInterval
	}
	return d
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	sb.WriteString("\nWATCH\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Min Interval", c.MinInterval))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Max Interval", c.MaxInterval))
	sb.WriteString(fmt.Sprintf("  %-22s: %.1f\n", "Latency Multiplier", c.LatencyMultiplier))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Read Timeout", c.ReadTimeout))

	return sb.String()
}
