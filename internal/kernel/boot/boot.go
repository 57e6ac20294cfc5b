// Package boot assembles the kernel simulator's subsystems into one running
// instance, the in-process analogue of the original kernel's main()/init()
// chain (console -> memory -> ramdisk -> buffer cache -> file system ->
// task 0/1). cmd/xjos's run/mkfs/fsck subcommands all start from Boot.
package boot

import (
	"context"
	"fmt"

	"github.com/hjw1766/XJOS/cfg"
	"github.com/hjw1766/XJOS/internal/kernel/blockdev"
	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/pmm"
	"github.com/hjw1766/XJOS/internal/kernel/proc"
	"github.com/hjw1766/XJOS/internal/kernel/sched"
	"github.com/hjw1766/XJOS/internal/kernel/syscall"
	"github.com/hjw1766/XJOS/internal/klog"
	"github.com/hjw1766/XJOS/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// RootDevice is the fixed device id the root file system is always mounted
// from, the way the original kernel always looks for its root on device 1.
const RootDevice = 1

var bootLog = klog.ForComponent("boot")

// Kernel is every subsystem instance one simulated boot wires together.
type Kernel struct {
	Config  cfg.Config
	Devices *blockdev.Table
	Cache   *buffercache.Cache
	FS      *minixfs.FS
	Frames  *pmm.FrameTable
	Sched   *sched.Scheduler
	Procs   *proc.Table
	Gate    *syscall.Gate
	Metrics metrics.Handle

	disk interface{ Close() error }
}

// Boot brings up a kernel instance over cfg: a ramdisk or file-backed disk
// device, a buffer cache on top of it, an unmounted file system context,
// physical memory, the scheduler, and an empty process table. It neither
// formats nor mounts the disk: call Mkfs first on a disk that isn't already
// a MINIX-v1 volume, then MountRootAndInit to mount the root, create init
// (pid 1) and build the syscall dispatch gate.
func Boot(ctx context.Context, c cfg.Config) (*Kernel, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("boot: invalid configuration: %w", err)
	}

	devices := blockdev.NewTable()
	diskBytes := c.Disk.TotalBlocks * 1024

	var drv blockdev.Driver
	var closer interface{ Close() error }
	if c.Disk.ImagePath == "" {
		drv = blockdev.NewRAMDisk(diskBytes)
		bootLog.Info("ramdisk attached", "size_bytes", diskBytes)
	} else {
		fd, err := blockdev.OpenFileDisk(c.Disk.ImagePath, diskBytes)
		if err != nil {
			return nil, fmt.Errorf("boot: attaching disk image: %w", err)
		}
		drv = fd
		closer = fd
		bootLog.Info("disk image attached", "path", c.Disk.ImagePath, "size_bytes", diskBytes)
	}
	devices.Register(RootDevice, blockdev.TypeBlock, blockdev.SubtypeRamDisk, 0, drv, nil)

	cache := buffercache.New(devices, c.Disk.BufferCountLimit)
	fsys := minixfs.New(cache)

	frames := pmm.NewFrameTable(c.Memory.PhysicalMemoryMB * 1024 * 1024 / c.Memory.PageSize)
	sc := sched.New(sched.NewTask(0, 0))
	procs := proc.NewTable(sc, fsys, frames)

	var metricsHandle metrics.Handle = metrics.Noop()
	if c.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsHandle = metrics.New(reg)
		metrics.Serve(c.Metrics.Address, reg)
		bootLog.Info("metrics served", "address", c.Metrics.Address)
	}

	k := &Kernel{
		Config:  c,
		Devices: devices,
		Cache:   cache,
		FS:      fsys,
		Frames:  frames,
		Sched:   sc,
		Procs:   procs,
		Metrics: metricsHandle,
		disk:    closer,
	}
	return k, nil
}

// Mkfs formats dev with a fresh MINIX-v1 layout, the boot-time equivalent of
// the mkfs(2) syscall invoked from a cold disk instead of a running process.
func (k *Kernel) Mkfs(ctx context.Context, dev uint32, icount uint32) error {
	return minixfs.Mkfs(ctx, k.Cache, dev, k.Config.Disk.TotalBlocks, icount)
}

// MountRootAndInit mounts the root file system and creates init (pid 1),
// wiring the syscall gate on top. Call after Mkfs on a freshly formatted
// disk, or directly against an already-formatted one.
func (k *Kernel) MountRootAndInit(ctx context.Context) (*proc.Process, error) {
	root, err := minixfs.MountRoot(ctx, k.FS, RootDevice)
	if err != nil {
		return nil, fmt.Errorf("boot: mounting root: %w", err)
	}
	init := k.Procs.CreateInit(root, uint32(k.Config.Memory.PageSize), 0)
	k.Gate = syscall.New(k.Procs, k.Metrics)
	return init, nil
}

// Close flushes every dirty buffer back to the device, then releases the
// backing disk, if one was opened from a file. Mirrors a real shutdown
// path calling sync(2) before the disk is detached.
func (k *Kernel) Close(ctx context.Context) error {
	if err := k.Cache.Sync(ctx); err != nil {
		return fmt.Errorf("boot: syncing buffer cache: %w", err)
	}
	if k.disk == nil {
		return nil
	}
	return k.disk.Close()
}
