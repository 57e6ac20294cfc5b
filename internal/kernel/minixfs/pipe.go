package minixfs

import (
	"sync"

	"github.com/hjw1766/XJOS/internal/kernel/kernsync"
)

// pipeCapacity is the ring buffer size backing one pipe, matching one
// buffer-cache block so a full pipe occupies exactly one cache unit's
// worth of memory.
const pipeCapacity = BlockSize

// pipe is an in-memory ring buffer shared by a pipe's read and write
// ends. Readers block on notEmpty until data (or EOF) arrives; writers
// block on notFull until space opens up or every reader has gone away.
type pipe struct {
	mu    sync.Mutex
	buf   [pipeCapacity]byte
	head  int
	tail  int
	count int

	readers int
	writers int

	notEmpty kernsync.FIFO
	notFull  kernsync.FIFO
}

// newPipe allocates an unconnected pipe with one reader and one writer
// reference, matching the two file descriptors pipe(2) hands back.
func newPipe() *pipe {
	return &pipe{readers: 1, writers: 1}
}

func (p *pipe) addReader() { p.mu.Lock(); p.readers++; p.mu.Unlock() }
func (p *pipe) addWriter() { p.mu.Lock(); p.writers++; p.mu.Unlock() }

func (p *pipe) dropReader() {
	p.mu.Lock()
	p.readers--
	wake := p.readers == 0
	p.mu.Unlock()
	if wake {
		releaseAll(&p.notFull)
	}
}

func (p *pipe) dropWriter() {
	p.mu.Lock()
	p.writers--
	wake := p.writers == 0
	p.mu.Unlock()
	if wake {
		releaseAll(&p.notEmpty)
	}
}

func releaseAll(f *kernsync.FIFO) {
	for f.ReleaseOne() {
	}
}

// Read copies up to len(buf) bytes out of the ring, blocking while the
// pipe is empty and still has writers. Returns (0, nil) at EOF (no data,
// no writers left).
func (p *pipe) Read(buf []byte) (int, error) {
	for {
		p.mu.Lock()
		if p.count > 0 {
			n := 0
			for n < len(buf) && p.count > 0 {
				buf[n] = p.buf[p.head]
				p.head = (p.head + 1) % pipeCapacity
				p.count--
				n++
			}
			p.mu.Unlock()
			releaseAll(&p.notFull)
			return n, nil
		}
		if p.writers == 0 {
			p.mu.Unlock()
			return 0, nil
		}
		gate := kernsync.NewGate()
		p.notEmpty.Enqueue(gate)
		p.mu.Unlock()
		gate.Wait()
	}
}

// Write copies all of buf into the ring, blocking while it is full and
// still has readers. Writing with no readers left returns ErrClosedPipe.
func (p *pipe) Write(buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		p.mu.Lock()
		if p.readers == 0 {
			p.mu.Unlock()
			return written, ErrClosedPipe
		}
		if p.count < pipeCapacity {
			for written < len(buf) && p.count < pipeCapacity {
				p.buf[p.tail] = buf[written]
				p.tail = (p.tail + 1) % pipeCapacity
				p.count++
				written++
			}
			p.mu.Unlock()
			releaseAll(&p.notEmpty)
			continue
		}
		gate := kernsync.NewGate()
		p.notFull.Enqueue(gate)
		p.mu.Unlock()
		gate.Wait()
	}
	return written, nil
}

// ErrClosedPipe is returned by Write once every reader end has closed.
var ErrClosedPipe = fsError("minixfs: write on closed pipe")
