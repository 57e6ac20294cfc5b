package syscall

import "github.com/hjw1766/XJOS/internal/kernel/minixfs"

// Result is what a handler hands back to the gate. Value is the plain
// integer return value (a byte count, a fd, a pid, or EOF); the other
// fields are populated only by the handful of calls that return more
// than one machine word (execve's entry/stack pair, stat's field set,
// getcwd's string, exit's termination signal).
type Result struct {
	Value  int32
	Status int32 // waitpid's reaped exit status
	Str    string
	Stat   minixfs.Stat
	Entry  uint32
	Stack  uint32
	Exited bool
}

func ok(v int32) (Result, error) { return Result{Value: v}, nil }
func fail() (Result, error)      { return Result{Value: EOF}, nil }
