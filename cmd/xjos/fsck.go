package main

import (
	"context"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/blockdev"
	"github.com/hjw1766/XJOS/internal/kernel/boot"
	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/spf13/cobra"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Walk disk.image-path's inode/zone bitmaps for consistency",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if c.Disk.ImagePath == "" {
			return fmt.Errorf("fsck: disk.image-path must be set")
		}

		ctx := context.Background()
		drv, err := blockdev.OpenFileDisk(c.Disk.ImagePath, c.Disk.TotalBlocks*1024)
		if err != nil {
			return err
		}
		defer drv.Close()

		devices := blockdev.NewTable()
		devices.Register(boot.RootDevice, blockdev.TypeBlock, blockdev.SubtypeRamDisk, 0, drv, nil)
		cache := buffercache.New(devices, c.Disk.BufferCountLimit)

		report, err := minixfs.Fsck(ctx, cache, boot.RootDevice)
		if err != nil {
			return fmt.Errorf("fsck: %w", err)
		}
		printFsckReport(report)
		if !report.OK() {
			return fmt.Errorf("fsck: %s is inconsistent", c.Disk.ImagePath)
		}
		fmt.Println("clean")
		return nil
	},
}

func printFsckReport(r minixfs.FsckReport) {
	if len(r.LeakedInodes) > 0 {
		fmt.Printf("leaked inodes (marked used, zero links): %v\n", r.LeakedInodes)
	}
	if len(r.UnmarkedLiveInodes) > 0 {
		fmt.Printf("live inodes missing from the bitmap: %v\n", r.UnmarkedLiveInodes)
	}
	if len(r.LeakedZones) > 0 {
		fmt.Printf("leaked zones (marked used, unreferenced): %v\n", r.LeakedZones)
	}
	if len(r.DoubleAllocatedZones) > 0 {
		fmt.Printf("zones referenced by more than one inode: %v\n", r.DoubleAllocatedZones)
	}
	if len(r.DanglingZoneRefs) > 0 {
		fmt.Printf("zones referenced but missing from the bitmap: %v\n", r.DanglingZoneRefs)
	}
}

func init() {
	rootCmd.AddCommand(fsckCmd)
}
