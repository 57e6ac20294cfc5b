package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/hjw1766/XJOS/internal/kernel/boot"
	"github.com/spf13/cobra"
)

var (
	runFormat bool
	runScript string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the kernel over a disk image or RAM disk and drive it",
	Long: `run boots a simulated instance (disk image via disk.image-path, or an
in-memory RAM disk if unset), then either executes a script of shell
commands line by line (--script) or drops into the interactive shell.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		k, err := boot.Boot(ctx, c)
		if err != nil {
			return err
		}
		defer k.Close(ctx)

		if runFormat {
			if err := k.Mkfs(ctx, boot.RootDevice, 0); err != nil {
				return fmt.Errorf("run: formatting: %w", err)
			}
		}

		init, err := k.MountRootAndInit(ctx)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		sh := newShell(k.Gate, init, os.Stdin, os.Stdout)
		if runScript != "" {
			f, err := os.Open(runScript)
			if err != nil {
				return fmt.Errorf("run: opening script: %w", err)
			}
			defer f.Close()
			return runScripted(ctx, sh, f)
		}
		return sh.Run(ctx)
	},
}

// runScripted drives sh non-interactively, echoing each line as it would
// appear after an interactive prompt, for reproducible scripted sessions
// (CI smoke tests, demo transcripts).
func runScripted(ctx context.Context, sh *shell, script *os.File) error {
	scanner := bufio.NewScanner(script)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprint(sh.out, sh.prompt(ctx))
		fmt.Fprintln(sh.out, line)
		if line == "" {
			continue
		}
		if err := sh.execLine(ctx, line); err != nil {
			if err == errShellExit {
				return nil
			}
			fmt.Fprintln(sh.out, err)
		}
	}
	return scanner.Err()
}

func init() {
	runCmd.Flags().BoolVar(&runFormat, "format", false, "mkfs the disk before mounting (use on a fresh image or RAM disk)")
	runCmd.Flags().StringVar(&runScript, "script", "", "path to a file of shell commands to run non-interactively")
	rootCmd.AddCommand(runCmd)
}
