// Package syscall implements the L8 gate: a fixed dispatch table indexed
// by syscall number, closing over the proc/minixfs/vm/sched subsystems
// that actually carry out each call. An unknown number is a
// NotSupported fault (it indicates a bug in the caller, never a
// recoverable condition), matching every other kernel layer's
// fatal-vs-recoverable split.
package syscall

// Number is a syscall number, as pushed in a trap frame's eax.
type Number uint32

const (
	Test     Number = 0
	Exit     Number = 1
	Fork     Number = 2
	Read     Number = 3
	Write    Number = 4
	Open     Number = 5
	Close    Number = 6
	Waitpid  Number = 7
	Creat    Number = 8
	Link     Number = 9
	Unlink   Number = 10
	Execve   Number = 11
	Chdir    Number = 12
	Time     Number = 13
	Mknod    Number = 14
	Stat     Number = 18
	Lseek    Number = 19
	Getpid   Number = 20
	Mount    Number = 21
	Umount   Number = 22
	Fstat    Number = 28
	Sync     Number = 36
	Mkdir    Number = 39
	Rmdir    Number = 40
	Dup      Number = 41
	Brk      Number = 45
	Umask    Number = 60
	Chroot   Number = 61
	Dup2     Number = 63
	Getppid  Number = 64
	Readdir  Number = 89
	Mmap     Number = 90
	Munmap   Number = 91
	Yield    Number = 158
	Sleep    Number = 162
	Getcwd   Number = 183
	Clear    Number = 200
	Mkfs     Number = 201
)

// EOF is the universal recoverable-error sentinel every syscall returns
// instead of exposing errno to user space.
const EOF int32 = -1
