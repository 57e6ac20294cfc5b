package syscall

import (
	"testing"

	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchUnknownNumberIsNotSupported(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	_, err := g.Dispatch(ctx, p, Number(9999), Args{})
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestDispatchTestAndGetpid(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	res, err := g.Dispatch(ctx, p, Test, Args{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), res.Value)

	res, err = g.Dispatch(ctx, p, Getpid, Args{})
	require.NoError(t, err)
	assert.Equal(t, int32(p.PID()), res.Value)
}

func TestOpenWriteCloseReadRoundTrips(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	openRes, err := g.Dispatch(ctx, p, Open, Args{Path: "/greeting", Flags: minixfs.OCreate | minixfs.OWrite, Mode: 0644})
	require.NoError(t, err)
	fd := int(openRes.Value)
	require.NotEqual(t, int32(EOF), openRes.Value)

	writeRes, err := g.Dispatch(ctx, p, Write, Args{Fd: fd, Buf: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, int32(5), writeRes.Value)

	_, err = g.Dispatch(ctx, p, Close, Args{Fd: fd})
	require.NoError(t, err)

	openRes, err = g.Dispatch(ctx, p, Open, Args{Path: "/greeting", Flags: minixfs.ORead})
	require.NoError(t, err)
	fd2 := int(openRes.Value)

	buf := make([]byte, 5)
	readRes, err := g.Dispatch(ctx, p, Read, Args{Fd: fd2, Buf: buf})
	require.NoError(t, err)
	assert.Equal(t, int32(5), readRes.Value)
	assert.Equal(t, "hello", string(buf))
}

func TestReadFromBadFdReturnsEOF(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	res, err := g.Dispatch(ctx, p, Read, Args{Fd: 9, Buf: make([]byte, 4)})
	require.NoError(t, err)
	assert.Equal(t, int32(EOF), res.Value)
}

func TestForkGivesChildDistinctPIDAndMatchingPPID(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	res, err := g.Dispatch(ctx, p, Fork, Args{})
	require.NoError(t, err)
	childPID := uint32(res.Value)
	assert.NotEqual(t, p.PID(), childPID)

	child, ok := g.Procs.Lookup(childPID)
	require.True(t, ok)

	res, err = g.Dispatch(ctx, child, Getppid, Args{})
	require.NoError(t, err)
	assert.Equal(t, int32(p.PID()), res.Value)
}

func TestExitThenWaitpidReapsChild(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	forkRes, err := g.Dispatch(ctx, p, Fork, Args{})
	require.NoError(t, err)
	childPID := uint32(forkRes.Value)
	child, ok := g.Procs.Lookup(childPID)
	require.True(t, ok)

	exitRes, err := g.Dispatch(ctx, child, Exit, Args{Status: 3})
	require.NoError(t, err)
	assert.True(t, exitRes.Exited)

	waitRes, err := g.Dispatch(ctx, p, Waitpid, Args{Pid: -1})
	require.NoError(t, err)
	assert.Equal(t, int32(childPID), waitRes.Value)
	assert.Equal(t, int32(3), waitRes.Status)
}

func TestMkdirThenStatReportsDirectoryMode(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	_, err := g.Dispatch(ctx, p, Mkdir, Args{Path: "/sub", Mode: 0755})
	require.NoError(t, err)

	res, err := g.Dispatch(ctx, p, Stat, Args{Path: "/sub"})
	require.NoError(t, err)
	assert.Equal(t, uint16(minixfs.IFDIR), res.Stat.Mode&minixfs.IFMT)
}

func TestChdirUpdatesPwdAndGetcwdReportsIt(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	_, err := g.Dispatch(ctx, p, Mkdir, Args{Path: "/home", Mode: 0755})
	require.NoError(t, err)
	_, err = g.Dispatch(ctx, p, Chdir, Args{Path: "/home"})
	require.NoError(t, err)

	res, err := g.Dispatch(ctx, p, Getcwd, Args{})
	require.NoError(t, err)
	assert.Equal(t, "/home", res.Str)
}

func TestBrkGrowsHeapWithinBounds(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	res, err := g.Dispatch(ctx, p, Brk, Args{Addr: p.ImgEnd + 4096})
	require.NoError(t, err)
	assert.Equal(t, int32(p.ImgEnd+4096), res.Value)
}

func TestSleepAndYieldDoNotError(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	_, err := g.Dispatch(ctx, p, Sleep, Args{MS: 5})
	require.NoError(t, err)
	_, err = g.Dispatch(ctx, p, Yield, Args{})
	require.NoError(t, err)
}

func TestUnlinkRemovesFile(t *testing.T) {
	g, p := newTestGate(t)
	ctx := newTestContext()

	_, err := g.Dispatch(ctx, p, Creat, Args{Path: "/doomed", Mode: 0644})
	require.NoError(t, err)
	_, err = g.Dispatch(ctx, p, Unlink, Args{Path: "/doomed"})
	require.NoError(t, err)

	res, err := g.Dispatch(ctx, p, Open, Args{Path: "/doomed", Flags: minixfs.ORead})
	require.NoError(t, err)
	assert.Equal(t, int32(EOF), res.Value)
}
