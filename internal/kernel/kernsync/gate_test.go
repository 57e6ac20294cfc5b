package kernsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateWaitBlocksUntilOpen(t *testing.T) {
	g := NewGate()
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Open")
	case <-time.After(20 * time.Millisecond):
	}

	g.Open()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Open")
	}
}

func TestGateOpenBeforeWaitIsNotLost(t *testing.T) {
	g := NewGate()
	g.Open()
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never returned")
	}
}

func TestGateOpenIsIdempotent(t *testing.T) {
	g := NewGate()
	assert.NotPanics(t, func() {
		g.Open()
		g.Open()
	})
}

func TestFIFOReleasesInOrder(t *testing.T) {
	var f FIFO
	var released []int
	for i := 0; i < 3; i++ {
		i := i
		g := NewGate()
		f.Enqueue(g)
		go func() {
			g.Wait()
			released = append(released, i)
		}()
	}

	assert.True(t, f.ReleaseOne())
	time.Sleep(10 * time.Millisecond)
	assert.True(t, f.ReleaseOne())
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []int{0, 1}, released)
	assert.Equal(t, 1, f.Len())

	assert.True(t, f.ReleaseOne())
	assert.False(t, f.ReleaseOne())
}
