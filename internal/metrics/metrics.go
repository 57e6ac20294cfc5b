// Package metrics exposes the kernel simulator's Prometheus counters,
// mirroring gcsfuse's internal/monitor + metrics packages, plus a
// Noop implementation for tests (matching the teacher's
// common/noop_metrics.go).
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handle is the interface every subsystem depends on, so tests can inject
// Noop() instead of standing up a real registry.
type Handle interface {
	DispatchCount()
	ContextSwitchCount()
	PageFault(kind string)
	BufferCacheHit()
	BufferCacheMiss()
	ElevatorRequestServiced(dev uint32)
	InodeCacheHit()
	InodeCacheMiss()
	Syscall(number uint32)
}

type promHandle struct {
	dispatches       prometheus.Counter
	contextSwitches  prometheus.Counter
	pageFaults       *prometheus.CounterVec
	bufferCacheHits  prometheus.Counter
	bufferCacheMiss  prometheus.Counter
	elevatorServiced *prometheus.CounterVec
	inodeCacheHits   prometheus.Counter
	inodeCacheMiss   prometheus.Counter
	syscalls         *prometheus.CounterVec
}

// New registers the kernel's metric families on reg and returns a Handle.
func New(reg prometheus.Registerer) Handle {
	h := &promHandle{
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "sched", Name: "dispatches_total",
			Help: "Number of times schedule() picked a new task to run.",
		}),
		contextSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "sched", Name: "context_switches_total",
			Help: "Number of task->task context switches performed.",
		}),
		pageFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "vm", Name: "page_faults_total",
			Help: "Page faults handled, labeled by resolution kind.",
		}, []string{"kind"}),
		bufferCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "buffercache", Name: "hits_total",
			Help: "buffer cache get() calls resolved without a miss.",
		}),
		bufferCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "buffercache", Name: "misses_total",
			Help: "buffer cache get() calls that required a free buffer.",
		}),
		elevatorServiced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "blockdev", Name: "requests_serviced_total",
			Help: "Block device requests serviced by the elevator, by device id.",
		}, []string{"device"}),
		inodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "minixfs", Name: "inode_cache_hits_total",
			Help: "iget() calls resolved from the in-memory inode cache.",
		}),
		inodeCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "minixfs", Name: "inode_cache_misses_total",
			Help: "iget() calls that loaded the inode table block from the buffer cache.",
		}),
		syscalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xjos", Subsystem: "syscall", Name: "invocations_total",
			Help: "Syscall gate dispatches, by syscall number.",
		}, []string{"number"}),
	}

	reg.MustRegister(
		h.dispatches, h.contextSwitches, h.pageFaults,
		h.bufferCacheHits, h.bufferCacheMiss, h.elevatorServiced,
		h.inodeCacheHits, h.inodeCacheMiss, h.syscalls,
	)
	return h
}

func (h *promHandle) DispatchCount()      { h.dispatches.Inc() }
func (h *promHandle) ContextSwitchCount() { h.contextSwitches.Inc() }
func (h *promHandle) PageFault(kind string) {
	h.pageFaults.WithLabelValues(kind).Inc()
}
func (h *promHandle) BufferCacheHit()  { h.bufferCacheHits.Inc() }
func (h *promHandle) BufferCacheMiss() { h.bufferCacheMiss.Inc() }
func (h *promHandle) ElevatorRequestServiced(dev uint32) {
	h.elevatorServiced.WithLabelValues(deviceLabel(dev)).Inc()
}
func (h *promHandle) InodeCacheHit()  { h.inodeCacheHits.Inc() }
func (h *promHandle) InodeCacheMiss() { h.inodeCacheMiss.Inc() }
func (h *promHandle) Syscall(number uint32) {
	h.syscalls.WithLabelValues(syscallLabel(number)).Inc()
}

func deviceLabel(dev uint32) string { return strconv.FormatUint(uint64(dev), 10) }
func syscallLabel(n uint32) string  { return strconv.FormatUint(uint64(n), 10) }

// Serve starts an HTTP server exposing /metrics on addr using reg, returning
// immediately; the caller is responsible for shutting the process down.
func Serve(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Noop satisfies Handle while doing nothing, for unit tests that don't care
// about metrics (mirrors the teacher's common.NewNoopMetrics()).
func Noop() Handle { return noopHandle{} }

type noopHandle struct{}

func (noopHandle) DispatchCount()                        {}
func (noopHandle) ContextSwitchCount()                    {}
func (noopHandle) PageFault(string)                       {}
func (noopHandle) BufferCacheHit()                        {}
func (noopHandle) BufferCacheMiss()                       {}
func (noopHandle) ElevatorRequestServiced(dev uint32)     {}
func (noopHandle) InodeCacheHit()                         {}
func (noopHandle) InodeCacheMiss()                        {}
func (noopHandle) Syscall(number uint32)                  {}
