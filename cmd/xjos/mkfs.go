package main

import (
	"context"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/boot"
	"github.com/spf13/cobra"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format disk.image-path with a fresh MINIX-v1 layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if c.Disk.ImagePath == "" {
			return fmt.Errorf("mkfs: disk.image-path must be set (pass --disk.image-path or a config file)")
		}

		ctx := context.Background()
		k, err := boot.Boot(ctx, c)
		if err != nil {
			return err
		}
		defer k.Close(ctx)

		if err := k.Mkfs(ctx, boot.RootDevice, 0); err != nil {
			return fmt.Errorf("mkfs: %w", err)
		}
		fmt.Printf("formatted %s: %d blocks\n", c.Disk.ImagePath, c.Disk.TotalBlocks)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mkfsCmd)
}
