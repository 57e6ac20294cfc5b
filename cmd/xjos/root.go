package main

import (
	"fmt"
	"io"

	"github.com/hjw1766/XJOS/cfg"
	"github.com/hjw1766/XJOS/internal/klog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "xjos",
	Short: "A teaching operating system kernel simulator",
	Long: `xjos simulates a small MINIX-v1-compatible kernel in a single
process: a CFS-style scheduler, paged virtual memory with copy-on-write,
a buffer cache and elevator block I/O layer, and a fork/execve/wait
process model, all driven from a disk image or an in-memory RAM disk.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	if err := cfg.BindFlags(viper.GetViper(), rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("xjos: binding flags: %v", err))
	}
}

// loadConfig reads cfgFile (if set) into viper and decodes the result,
// mirroring the teacher's initConfig/cfg.Config unmarshal step.
func loadConfig() (cfg.Config, error) {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg.Config{}, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}
	c, err := cfg.Load(v)
	if err != nil {
		return cfg.Config{}, err
	}
	var w io.Writer
	if c.Logging.FilePath != "" {
		w = klog.RotatingFile(c.Logging.FilePath)
	}
	klog.Configure(c.Logging.Format, c.Logging.Severity, w)
	return c, nil
}
