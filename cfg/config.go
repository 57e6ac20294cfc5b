// Package cfg defines the kernel simulator's configuration surface: a single
// nested Config struct populated by viper from a YAML file and pflag/cobra
// flags, the way the teacher's cfg.Config is populated in cmd/root.go.
package cfg

import (
	"fmt"
	"time"
)

// SchedulerConfig configures the CFS-style scheduler: clock tick period, CFS latency
// window and the minimum time slice, expressed as durations instead of the
// original's raw millisecond constants.
type SchedulerConfig struct {
	TickPeriod    time.Duration `mapstructure:"tick-period"`
	Latency       time.Duration `mapstructure:"latency"`
	MinTimeslice  time.Duration `mapstructure:"min-timeslice"`
	WakeupGranule time.Duration `mapstructure:"wakeup-granule"`
}

// MemoryConfig describes the simulated physical memory
// and the kernel's reserved virtual window.
type MemoryConfig struct {
	PhysicalMemoryMB int `mapstructure:"physical-memory-mb"`
	KernelMemoryMB   int `mapstructure:"kernel-memory-mb"`
	PageSize         int `mapstructure:"page-size"`
}

// DiskConfig describes the backing disk image used for
// mkfs and mount, and the buffer cache sizing.
type DiskConfig struct {
	ImagePath        string `mapstructure:"image-path"`
	TotalBlocks      int    `mapstructure:"total-blocks"`
	BufferCountLimit int    `mapstructure:"buffer-count-limit"`
}

// LoggingConfig mirrors the teacher's internal/logger configuration knobs.
type LoggingConfig struct {
	Format   string `mapstructure:"format"`   // "text" or "json"
	Severity string `mapstructure:"severity"` // TRACE/DEBUG/INFO/WARNING/ERROR/OFF
	FilePath string `mapstructure:"file-path"`
}

// MetricsConfig mirrors the teacher's internal/monitor Prometheus wiring.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Config is the root configuration object, analogous to gcsfuse's cfg.Config.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Disk      DiskConfig      `mapstructure:"disk"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// Default returns the configuration the spec's constants imply: 1ms ticks,
// SCHED_LATENCY = 10 ticks, MIN_TIMESLICE = 1 tick, a 16 MiB kernel region,
// 4 KiB pages and a 4 MiB RAM disk of 1 KiB blocks.
func Default() Config {
	tick := time.Millisecond
	return Config{
		Scheduler: SchedulerConfig{
			TickPeriod:    tick,
			Latency:       10 * tick,
			MinTimeslice:  tick,
			WakeupGranule: tick,
		},
		Memory: MemoryConfig{
			PhysicalMemoryMB: 64,
			KernelMemoryMB:   16,
			PageSize:         4096,
		},
		Disk: DiskConfig{
			ImagePath:        "",
			TotalBlocks:      4096, // 4 MiB / 1 KiB blocks
			BufferCountLimit: 256,
		},
		Logging: LoggingConfig{
			Format:   "text",
			Severity: "INFO",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9101",
		},
	}
}

// Validate rejects illegal combinations, the way the teacher's
// cfg.Config.Validate rejects inconsistent flag combinations before mount.
func (c Config) Validate() error {
	if c.Scheduler.TickPeriod <= 0 {
		return fmt.Errorf("scheduler.tick-period must be positive")
	}
	if c.Scheduler.Latency <= 0 {
		return fmt.Errorf("scheduler.latency must be positive")
	}
	if c.Scheduler.MinTimeslice <= 0 {
		return fmt.Errorf("scheduler.min-timeslice must be positive")
	}
	if c.Memory.KernelMemoryMB < 16 {
		return fmt.Errorf("memory.kernel-memory-mb must be >= 16, the spec's kernel-memory constant")
	}
	if c.Memory.PhysicalMemoryMB < c.Memory.KernelMemoryMB {
		return fmt.Errorf("memory.physical-memory-mb must be >= memory.kernel-memory-mb")
	}
	if c.Memory.PageSize <= 0 || c.Memory.PageSize&(c.Memory.PageSize-1) != 0 {
		return fmt.Errorf("memory.page-size must be a power of two")
	}
	if c.Disk.TotalBlocks <= 0 {
		return fmt.Errorf("disk.total-blocks must be positive")
	}
	if c.Disk.BufferCountLimit <= 0 {
		return fmt.Errorf("disk.buffer-count-limit must be positive")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// TicksFor converts a duration to a whole number of clock ticks, minimum 1 —
// the same rounding rule task_sleep and dispatch
// slice assignment.
func (c Config) TicksFor(d time.Duration) uint64 {
	if d <= 0 {
		return 1
	}
	n := uint64(d / c.Scheduler.TickPeriod)
	if n == 0 {
		n = 1
	}
	return n
}
