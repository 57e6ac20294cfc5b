package syscall

import (
	"context"

	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/proc"
)

func sysOpen(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	fd, err := p.Fds.Open(ctx, p.FS, a.Path, a.Flags, a.Mode)
	if err != nil {
		return fail()
	}
	return ok(int32(fd))
}

func sysCreat(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	flags := minixfs.OCreate | minixfs.OWrite | minixfs.OTrunc
	fd, err := p.Fds.Open(ctx, p.FS, a.Path, flags, a.Mode)
	if err != nil {
		return fail()
	}
	return ok(int32(fd))
}

func sysClose(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := p.Fds.Close(a.Fd); err != nil {
		return fail()
	}
	return ok(0)
}

func sysRead(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	n, err := p.Fds.Read(ctx, a.Fd, a.Buf)
	if err != nil {
		return fail()
	}
	return ok(int32(n))
}

func sysWrite(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	n, err := p.Fds.Write(ctx, a.Fd, a.Buf)
	if err != nil {
		return fail()
	}
	return ok(int32(n))
}

func sysLseek(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	off, err := p.Fds.Lseek(a.Fd, a.Off, a.Whence)
	if err != nil {
		return fail()
	}
	return ok(int32(off))
}

func sysDup(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	fd, err := p.Fds.Dup(a.Fd)
	if err != nil {
		return fail()
	}
	return ok(int32(fd))
}

func sysDup2(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	fd, err := p.Fds.Dup2(a.Fd, a.Fd2)
	if err != nil {
		return fail()
	}
	return ok(int32(fd))
}

func sysReaddir(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	entry, more, err := p.Fds.ReadDir(ctx, a.Fd)
	if err != nil {
		return fail()
	}
	if !more {
		return ok(0)
	}
	return Result{Value: int32(entry.Inode), Str: entry.Name}, nil
}

func sysFstat(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	st, err := p.Fds.Stat(a.Fd)
	if err != nil {
		return fail()
	}
	return Result{Value: 0, Stat: st}, nil
}

func sysStat(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	fsys := g.Procs.FS()
	st, err := fsys.Stat(ctx, p.FS, a.Path)
	if err != nil {
		return fail()
	}
	return Result{Value: 0, Stat: st}, nil
}

func sysMkdir(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Mkdir(ctx, p.FS, a.Path, a.Mode); err != nil {
		return fail()
	}
	return ok(0)
}

func sysRmdir(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Rmdir(ctx, p.FS, a.Path); err != nil {
		return fail()
	}
	return ok(0)
}

func sysUnlink(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Unlink(ctx, p.FS, a.Path); err != nil {
		return fail()
	}
	return ok(0)
}

func sysLink(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Link(ctx, p.FS, a.Path, a.NewPath); err != nil {
		return fail()
	}
	return ok(0)
}

func sysMknod(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Mknod(ctx, p.FS, a.Path, a.Mode, a.Dev); err != nil {
		return fail()
	}
	return ok(0)
}

func sysMount(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Mount(ctx, p.FS, a.Path, a.NewPath, a.Dev); err != nil {
		return fail()
	}
	return ok(0)
}

func sysUmount(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Umount(ctx, p.FS, a.Path); err != nil {
		return fail()
	}
	return ok(0)
}

func sysSync(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Sync(ctx); err != nil {
		return fail()
	}
	return ok(0)
}

func sysUmask(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	old := g.Procs.FS().SetUmask(a.Mode)
	return ok(int32(old))
}

func sysChdir(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	fsys := g.Procs.FS()
	in, err := fsys.Namei(ctx, p.FS, a.Path)
	if err != nil {
		return fail()
	}
	if !in.IsDir() {
		fsys.PutInode(in)
		return fail()
	}
	fsys.PutInode(p.FS.Cwd)
	p.FS.Cwd = in
	p.Pwd = joinPwd(p.Pwd, a.Path)
	return ok(0)
}

func sysChroot(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	fsys := g.Procs.FS()
	in, err := fsys.Namei(ctx, p.FS, a.Path)
	if err != nil {
		return fail()
	}
	if !in.IsDir() {
		fsys.PutInode(in)
		return fail()
	}
	fsys.PutInode(p.FS.Root)
	p.FS.Root = in
	return ok(0)
}

func sysGetcwd(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	return Result{Value: 0, Str: p.Pwd}, nil
}

func sysMkfs(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := g.Procs.FS().Mkfs(ctx, a.Dev, a.Blocks, a.ICount); err != nil {
		return fail()
	}
	return ok(0)
}

func sysClear(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	sysLog.Info("clear", "boot_id", g.Procs.BootID(), "pid", p.PID())
	return ok(0)
}

func sysTime(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	return ok(int32(g.Procs.Scheduler().Tick()))
}

// joinPwd resolves target against cwd the way chdir's already-successful
// Namei resolution did, purely for getcwd's textual reporting: absolute
// targets replace cwd outright, "." is a no-op, and everything else is
// appended.
func joinPwd(cwd, target string) string {
	if len(target) > 0 && target[0] == '/' {
		return cleanPath(target)
	}
	if target == "." || target == "" {
		return cwd
	}
	if cwd == "/" {
		return "/" + target
	}
	return cleanPath(cwd + "/" + target)
}

func cleanPath(p string) string {
	segs := make([]string, 0, 8)
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			seg := p[start:i]
			start = i + 1
			switch seg {
			case "", ".":
			case "..":
				if len(segs) > 0 {
					segs = segs[:len(segs)-1]
				}
			default:
				segs = append(segs, seg)
			}
		}
	}
	out := "/"
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
