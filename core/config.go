package core

import (
	"fmt"
	"strings"
	"time"
)

type QueueConfig struct {
	MaxRetries     int `koanf:"max_retries" mapstructure:"max_retries"`
	BaseIntervalMs int `koanf:"base_interval_ms" mapstructure:"base_interval_ms"`
	MaxIntervalMs  int `koanf:"max_interval_ms" mapstructure:"max_interval_ms"`
	BatchSize      int `koanf:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int `koanf:"worker_count" mapstructure:"worker_count"`
	PollIntervalMs int `koanf:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	SendTimeoutMs  int `koanf:"send_timeout_ms" mapstructure:"send_timeout_ms"`
	ClaimLeaseMs   int `koanf:"claim_lease_ms" mapstructure:"claim_lease_ms"`
}

func (c QueueConfig) BaseInterval() time.Duration {
	return time.Duration(c.BaseIntervalMs) * time.Millisecond
}

func (c QueueConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalMs) * time.Millisecond
}

func (c QueueConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c QueueConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

func (c QueueConfig) ClaimLease() time.Duration {
	return time.Duration(c.ClaimLeaseMs) * time.Millisecond
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	Queue       QueueConfig `koanf:"queue" mapstructure:"queue"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "relay",
		Queue: QueueConfig{
			MaxRetries:     5,
			BaseIntervalMs: 5_000,
			MaxIntervalMs:  300_000,
			BatchSize:      25,
			WorkerCount:    8,
			PollIntervalMs: 5_000,
			SendTimeoutMs:  10_000,
			ClaimLeaseMs:   300_000,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("core: queue.max_retries must not be negative")
	}
	if c.Queue.BaseIntervalMs <= 0 {
		return fmt.Errorf("core: queue.base_interval_ms must be positive")
	}
	if c.Queue.MaxIntervalMs < c.Queue.BaseIntervalMs {
		return fmt.Errorf("core: queue.max_interval_ms must be >= queue.base_interval_ms")
	}
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("core: queue.batch_size must be positive")
	}
	if c.Queue.WorkerCount <= 0 {
		return fmt.Errorf("core: queue.worker_count must be positive")
	}
	if c.Queue.SendTimeoutMs <= 0 {
		return fmt.Errorf("core: queue.send_timeout_ms must be positive")
	}
	if c.Queue.ClaimLeaseMs <= 0 {
		return fmt.Errorf("core: queue.claim_lease_ms must be positive")
	}
	return nil
}
