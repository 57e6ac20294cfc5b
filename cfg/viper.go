package cfg

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers the flags cmd/xjos's "run" and "mkfs" subcommands
// expose, mirroring the teacher's cmd/flags.go: one pflag per leaf config
// field, dot-separated to match the YAML keys via viper's key replacer.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("XJOS")
	v.AutomaticEnv()

	fs.Duration("scheduler.tick-period", time.Millisecond, "duration of one simulated clock tick")
	fs.Duration("scheduler.latency", 10*time.Millisecond, "SCHED_LATENCY: the target period in which every ready task runs once")
	fs.Duration("scheduler.min-timeslice", time.Millisecond, "MIN_TIMESLICE: floor on a dispatched task's assigned slice")
	fs.Duration("scheduler.wakeup-granule", time.Millisecond, "SCHED_WAKEUP_GRAN: sleeper-fairness vruntime credit")

	fs.Int("memory.physical-memory-mb", 64, "total simulated physical memory")
	fs.Int("memory.kernel-memory-mb", 16, "size of the kernel's identity-mapped region")
	fs.Int("memory.page-size", 4096, "simulated page size in bytes")

	fs.String("disk.image-path", "", "path to a MINIX-v1 disk image; empty means an in-memory RAM disk")
	fs.Int("disk.total-blocks", 4096, "total 1 KiB blocks on a freshly created RAM disk")
	fs.Int("disk.buffer-count-limit", 256, "maximum buffers the buffer cache may allocate before reusing via LRU")

	fs.String("logging.format", "text", "text or json log framing")
	fs.String("logging.severity", "INFO", "TRACE, DEBUG, INFO, WARNING, ERROR, or OFF")
	fs.String("logging.file-path", "", "log file path; empty logs to stderr")

	fs.Bool("metrics.enabled", false, "serve Prometheus metrics")
	fs.String("metrics.address", "127.0.0.1:9101", "address metrics are served on")

	return v.BindPFlags(fs)
}

// Load decodes a fully-populated viper instance into a Config, applying the
// defaults for anything neither flag nor file set. The explicit
// mapstructure decode hook (string -> time.Duration, e.g. "10ms" for
// scheduler.latency) is spelled out here rather than left to viper's
// bundled default, matching how the teacher's config layer names its
// decode hooks explicitly instead of relying on implicit behavior.
func Load(v *viper.Viper) (Config, error) {
	c := Default()
	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, err
	}
	return c, nil
}
