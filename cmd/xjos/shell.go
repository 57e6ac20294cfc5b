package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/proc"
	"github.com/hjw1766/XJOS/internal/kernel/syscall"
)

var logo = [...]string{
	`__  __   _  _____ ____ `,
	`\ \/ /  | |/ _ \ / ___|`,
	` \  /_  | | | | |\___ \`,
	` /  \ |_| | |_| |___) |`,
	`/_/\_\\___/ \___/|____/ `,
}

// shell is the line-oriented applet cmd_sh is grounded on: builtins
// dispatch straight through the syscall gate, anything else resolves
// under /bin and is spawned via fork+execve+waitpid, with pipelines and
// redirection wired through the same pipe/dup2 primitives the gate
// exposes. Since this simulator has no x86 instruction interpreter, a
// spawned child's "execution" is necessarily just the execve image-load
// step followed by an immediate exit — there is nothing here to actually
// run the loaded program's machine code, only to exercise the process
// plumbing around it.
type shell struct {
	gate *syscall.Gate
	self *proc.Process
	out  io.Writer
	in   *bufio.Scanner
}

func newShell(gate *syscall.Gate, self *proc.Process, in io.Reader, out io.Writer) *shell {
	return &shell{gate: gate, self: self, out: out, in: bufio.NewScanner(in)}
}

var builtinNames = []struct{ name, desc string }{
	{"cd", "Change directory"},
	{"exit", "Exit the shell"},
	{"help", "Display this help message"},
	{"logo", "Display system logo"},
	{"test", "Run system test"},
	{"pwd", "Print working directory"},
}

// Run drives the read-eval-print loop until EOF or a builtin exit.
func (sh *shell) Run(ctx context.Context) error {
	sh.printLogo()
	for {
		fmt.Fprint(sh.out, sh.prompt(ctx))
		if !sh.in.Scan() {
			return nil
		}
		line := strings.TrimSpace(sh.in.Text())
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
}

var errShellExit = fmt.Errorf("shell: exit")

func (sh *shell) prompt(ctx context.Context) string {
	res, err := sh.gate.Dispatch(ctx, sh.self, syscall.Getcwd, syscall.Args{})
	cwd := "/"
	if err == nil {
		cwd = res.Str
	}
	base := cwd
	if i := strings.LastIndexByte(cwd, '/'); i >= 0 && i+1 < len(cwd) {
		base = cwd[i+1:]
	} else if cwd == "/" {
		base = "/"
	}
	return fmt.Sprintf("[root %s]# ", base)
}

func (sh *shell) printLogo() {
	for _, line := range logo {
		fmt.Fprintln(sh.out, line)
	}
	fmt.Fprintln(sh.out)
}

// execLine splits line on "|" into a pipeline of commands and runs them
// left to right, wiring each stage's stdout to the next stage's stdin via
// pipe(2) the way the original osh.c's execute() chains spawn_process
// calls, extended here to actually connect the descriptors instead of
// running each stage against the shell's own terminal.
func (sh *shell) execLine(ctx context.Context, line string) error {
	stages := strings.Split(line, "|")
	if len(stages) == 1 {
		return sh.runStage(ctx, stages[0], -1, -1)
	}

	var readEnd int = -1
	for i, stage := range stages {
		last := i == len(stages)-1
		var writeEnd int = -1
		if !last {
			r, w, err := sh.gate.Pipe(sh.self)
			if err != nil {
				return fmt.Errorf("sh: pipe: %w", err)
			}
			writeEnd = w
			defer func(fd int) { _ = fd }(r)
			if err := sh.runStage(ctx, stage, readEnd, writeEnd); err != nil {
				return err
			}
			readEnd = r
			continue
		}
		if err := sh.runStage(ctx, stage, readEnd, -1); err != nil {
			return err
		}
	}
	return nil
}

// runStage parses one pipeline segment's redirection operators, then
// either runs a builtin directly or forks+execves an external program
// with stdinFd/stdoutFd dup2'd onto its fd 0/1 when set.
func (sh *shell) runStage(ctx context.Context, segment string, stdinFd, stdoutFd int) error {
	tokens, redirs := parseRedirections(segment)
	fields := strings.Fields(tokens)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	if handler, ok := sh.builtins()[name]; ok {
		if stdinFd >= 0 || stdoutFd >= 0 || len(redirs) > 0 {
			fmt.Fprintf(sh.out, "sh: %s: redirection not supported for builtins\n", name)
			return nil
		}
		return handler(ctx, args)
	}

	return sh.spawn(ctx, name, fields, stdinFd, stdoutFd, redirs)
}

type redirection struct {
	kind   string // "<", ">", ">>", "2>", "2>>"
	target string
}

// parseRedirections strips redirection operators from segment, returning
// the remaining command text and the operators found, in order.
func parseRedirections(segment string) (string, []redirection) {
	fields := strings.Fields(segment)
	var kept []string
	var redirs []redirection
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "<", f == ">", f == ">>", f == "2>", f == "2>>":
			if i+1 < len(fields) {
				redirs = append(redirs, redirection{kind: f, target: fields[i+1]})
				i++
			}
		default:
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " "), redirs
}

// spawn forks, applies redirections and pipeline dup2s in the child, then
// execves name (resolved under /bin if it has no slash), and the parent
// waits for it to exit.
func (sh *shell) spawn(ctx context.Context, name string, argv []string, stdinFd, stdoutFd int, redirs []redirection) error {
	path := name
	if !strings.ContainsRune(name, '/') {
		candidate := "/bin/" + name
		if st, err := sh.gate.Dispatch(ctx, sh.self, syscall.Stat, syscall.Args{Path: candidate}); err == nil && st.Value != syscall.EOF {
			path = candidate
		}
	}

	forkRes, err := sh.gate.Dispatch(ctx, sh.self, syscall.Fork, syscall.Args{})
	if err != nil {
		return fmt.Errorf("sh: fork: %w", err)
	}
	childPID := uint32(forkRes.Value)
	child, ok := sh.gate.Procs.Lookup(childPID)
	if !ok {
		return fmt.Errorf("sh: fork: child %d not registered", childPID)
	}

	if stdinFd >= 0 {
		sh.gate.Dispatch(ctx, child, syscall.Dup2, syscall.Args{Fd: stdinFd, Fd2: 0})
	}
	if stdoutFd >= 0 {
		sh.gate.Dispatch(ctx, child, syscall.Dup2, syscall.Args{Fd: stdoutFd, Fd2: 1})
	}
	for _, r := range redirs {
		if err := sh.applyRedirection(ctx, child, r); err != nil {
			fmt.Fprintln(sh.out, err)
		}
	}

	execRes, err := sh.gate.Dispatch(ctx, child, syscall.Execve, syscall.Args{Path: path, Argv: argv})
	if err != nil || execRes.Value == syscall.EOF {
		fmt.Fprintf(sh.out, "sh: command not found or execution failed: %s\n", name)
	}
	sh.gate.Dispatch(ctx, child, syscall.Exit, syscall.Args{Status: 0})

	_, err = sh.gate.Dispatch(ctx, sh.self, syscall.Waitpid, syscall.Args{Pid: int32(childPID)})
	return err
}

func (sh *shell) applyRedirection(ctx context.Context, p *proc.Process, r redirection) error {
	switch r.kind {
	case "<":
		res, err := sh.gate.Dispatch(ctx, p, syscall.Open, syscall.Args{Path: r.target, Flags: minixfs.ORead})
		if err != nil || res.Value == syscall.EOF {
			return fmt.Errorf("sh: %s: no such file or directory", r.target)
		}
		_, err = sh.gate.Dispatch(ctx, p, syscall.Dup2, syscall.Args{Fd: int(res.Value), Fd2: 0})
		return err
	case ">", ">>":
		flags := minixfs.OCreate | minixfs.OWrite
		if r.kind == ">>" {
			flags |= minixfs.OAppend
		} else {
			flags |= minixfs.OTrunc
		}
		res, err := sh.gate.Dispatch(ctx, p, syscall.Open, syscall.Args{Path: r.target, Flags: flags, Mode: 0644})
		if err != nil || res.Value == syscall.EOF {
			return fmt.Errorf("sh: %s: cannot create", r.target)
		}
		_, err = sh.gate.Dispatch(ctx, p, syscall.Dup2, syscall.Args{Fd: int(res.Value), Fd2: 1})
		return err
	case "2>", "2>>":
		flags := minixfs.OCreate | minixfs.OWrite
		if r.kind == "2>>" {
			flags |= minixfs.OAppend
		} else {
			flags |= minixfs.OTrunc
		}
		res, err := sh.gate.Dispatch(ctx, p, syscall.Open, syscall.Args{Path: r.target, Flags: flags, Mode: 0644})
		if err != nil || res.Value == syscall.EOF {
			return fmt.Errorf("sh: %s: cannot create", r.target)
		}
		_, err = sh.gate.Dispatch(ctx, p, syscall.Dup2, syscall.Args{Fd: int(res.Value), Fd2: 2})
		return err
	default:
		return fmt.Errorf("sh: unknown redirection %q", r.kind)
	}
}

func (sh *shell) builtins() map[string]func(ctx context.Context, args []string) error {
	return map[string]func(ctx context.Context, args []string) error{
		"exit": func(ctx context.Context, args []string) error { return errShellExit },
		"help": func(ctx context.Context, args []string) error {
			fmt.Fprintln(sh.out, "Available commands:")
			for _, b := range builtinNames {
				fmt.Fprintf(sh.out, "  %-8s - %s\n", b.name, b.desc)
			}
			return nil
		},
		"logo": func(ctx context.Context, args []string) error { sh.printLogo(); return nil },
		"test": func(ctx context.Context, args []string) error {
			fmt.Fprintln(sh.out, "Running system test...")
			return nil
		},
		"pwd": func(ctx context.Context, args []string) error {
			res, err := sh.gate.Dispatch(ctx, sh.self, syscall.Getcwd, syscall.Args{})
			if err != nil {
				return err
			}
			fmt.Fprintln(sh.out, res.Str)
			return nil
		},
		"cd": func(ctx context.Context, args []string) error {
			target := "/"
			if len(args) > 0 {
				target = args[0]
			}
			res, err := sh.gate.Dispatch(ctx, sh.self, syscall.Chdir, syscall.Args{Path: target})
			if err != nil || res.Value == syscall.EOF {
				fmt.Fprintf(sh.out, "cd: %s: No such file or directory\n", target)
			}
			return nil
		},
	}
}
