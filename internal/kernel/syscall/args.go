package syscall

import (
	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/vm"
)

// Args carries every field any single syscall handler might need. A real
// trap frame would pack these into three registers; this simulation has
// no raw user-memory pointers to decode register values against, so
// Args exposes the already-decoded Go values a handler wants (the
// in-process equivalent of copy_from_user having already happened).
// Handlers read only the fields relevant to their own number.
type Args struct {
	Path    string
	NewPath string // link's target, mount's dirpath
	Fd      int
	Fd2     int // dup2's newfd
	Buf     []byte
	Flags   minixfs.OpenFlag
	Mode    uint16
	Off     int64
	Whence  minixfs.SeekWhence
	Argv    []string
	Envp    []string
	Pid     int32
	MS      int
	NPages  int
	Prot    vm.MmapProt
	Addr    uint32
	Dev     uint32
	Blocks  int
	ICount  uint32
	Status  int
}
