// Package metrics exposes the kernel's health/observability surface:
// Prometheus gauges and counters for the world, pipeline, sandbox and
// bridge, plus a structured JSON event log. Grounded on the teacher's
// core/system_health_logging.go HealthLogger, generalized from a single
// ledger/network/coin snapshot to this runtime's World/Pipeline/Bridge.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Snapshot is a point-in-time view of kernel health, the same role the
// teacher's Metrics struct plays for the ledger.
type Snapshot struct {
	Tick             uint64 `json:"tick"`
	AgentCount       int    `json:"agent_count"`
	LocationCount    int    `json:"location_count"`
	JournalLength    uint64 `json:"journal_length"`
	ExecutedHeight   uint64 `json:"executed_height"`
	PendingBatches   int    `json:"pending_batches"`
	MemAlloc         uint64 `json:"mem_alloc"`
	NumGoroutines    int    `json:"goroutines"`
	Timestamp        int64  `json:"timestamp"`
}

// WorldSource supplies the world-side fields of a Snapshot.
type WorldSource interface {
	AgentCount() int
	LocationCount() int
	CurrentTick() uint64
}

// JournalSource supplies the journal-length field of a Snapshot.
type JournalSource interface {
	Length() uint64
}

// BridgeSource supplies the consensus-bridge fields of a Snapshot.
type BridgeSource interface {
	ExecutedHeightValue() uint64
	PendingBatchCount() int
}

// Recorder owns the Prometheus registry and a structured JSON log file,
// mirroring the teacher's HealthLogger: one place that both logs events
// and keeps gauges current for a /metrics endpoint.
type Recorder struct {
	world   WorldSource
	journal JournalSource
	bridge  BridgeSource

	log  *logrus.Logger
	file *os.File
	mu   sync.Mutex

	registry *prometheus.Registry

	tickGauge           prometheus.Gauge
	agentCountGauge     prometheus.Gauge
	locationCountGauge  prometheus.Gauge
	journalLengthGauge  prometheus.Gauge
	executedHeightGauge prometheus.Gauge
	pendingBatchesGauge prometheus.Gauge
	memAllocGauge       prometheus.Gauge
	goroutinesGauge     prometheus.Gauge

	actionsAcceptedCounter prometheus.Counter
	actionsRejectedCounter prometheus.Counter
	gasConsumedCounter     prometheus.Counter
	sandboxFaultsCounter   *prometheus.CounterVec
	errorCounter           prometheus.Counter
}

// NewRecorder configures a Recorder writing JSON logs to path. world,
// journal and bridge may be nil if those subsystems aren't wired yet;
// their gauges simply stay at zero.
func NewRecorder(world WorldSource, journal JournalSource, bridge BridgeSource, path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	lg := logrus.New()
	lg.SetFormatter(&logrus.JSONFormatter{})
	lg.SetOutput(f)
	reg := prometheus.NewRegistry()

	r := &Recorder{world: world, journal: journal, bridge: bridge, log: lg, file: f, registry: reg}

	r.tickGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_tick", Help: "Current simulation tick.",
	})
	r.agentCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_agent_count", Help: "Number of agents in world state.",
	})
	r.locationCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_location_count", Help: "Number of locations in world state.",
	})
	r.journalLengthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_journal_length", Help: "Number of events appended to the journal.",
	})
	r.executedHeightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_executed_height", Help: "Highest consensus height applied to world state.",
	})
	r.pendingBatchesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_pending_batches", Help: "Committed batches buffered awaiting contiguous height.",
	})
	r.memAllocGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_mem_alloc_bytes", Help: "Current memory allocation in bytes.",
	})
	r.goroutinesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentworld_goroutines", Help: "Number of running goroutines.",
	})
	r.actionsAcceptedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentworld_actions_accepted_total", Help: "Total actions accepted by the pipeline.",
	})
	r.actionsRejectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentworld_actions_rejected_total", Help: "Total actions rejected by the pipeline.",
	})
	r.gasConsumedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentworld_gas_consumed_total", Help: "Total gas consumed across all sandbox calls.",
	})
	r.sandboxFaultsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentworld_sandbox_faults_total", Help: "Sandbox call faults by fault code.",
	}, []string{"code"})
	r.errorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentworld_log_errors_total", Help: "Total number of error events logged.",
	})

	reg.MustRegister(
		r.tickGauge, r.agentCountGauge, r.locationCountGauge, r.journalLengthGauge,
		r.executedHeightGauge, r.pendingBatchesGauge, r.memAllocGauge, r.goroutinesGauge,
		r.actionsAcceptedCounter, r.actionsRejectedCounter, r.gasConsumedCounter,
		r.sandboxFaultsCounter, r.errorCounter,
	)

	return r, nil
}

// Close releases the underlying log file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// LogEvent records an arbitrary message with the given level.
func (r *Recorder) LogEvent(level logrus.Level, msg string, fields logrus.Fields) {
	r.mu.Lock()
	if level >= logrus.ErrorLevel {
		r.errorCounter.Inc()
	}
	r.log.WithFields(fields).Log(level, msg)
	r.mu.Unlock()
}

// ActionAccepted increments the accepted-action counter.
func (r *Recorder) ActionAccepted() { r.actionsAcceptedCounter.Inc() }

// ActionRejected increments the rejected-action counter.
func (r *Recorder) ActionRejected() { r.actionsRejectedCounter.Inc() }

// GasConsumed adds used to the cumulative gas-consumed counter.
func (r *Recorder) GasConsumed(used uint64) { r.gasConsumedCounter.Add(float64(used)) }

// SandboxFault increments the fault counter for the given fault code.
func (r *Recorder) SandboxFault(code string) { r.sandboxFaultsCounter.WithLabelValues(code).Inc() }

// Snapshot gathers current metrics from the world, bridge and runtime.
func (r *Recorder) Snapshot() Snapshot {
	s := Snapshot{Timestamp: time.Now().Unix(), NumGoroutines: runtime.NumGoroutine()}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s.MemAlloc = mem.Alloc

	if r.world != nil {
		s.Tick = r.world.CurrentTick()
		s.AgentCount = r.world.AgentCount()
		s.LocationCount = r.world.LocationCount()
	}
	if r.journal != nil {
		s.JournalLength = r.journal.Length()
	}
	if r.bridge != nil {
		s.ExecutedHeight = r.bridge.ExecutedHeightValue()
		s.PendingBatches = r.bridge.PendingBatchCount()
	}
	return s
}

// Record captures a snapshot and updates every gauge from it.
func (r *Recorder) Record() {
	s := r.Snapshot()
	r.tickGauge.Set(float64(s.Tick))
	r.agentCountGauge.Set(float64(s.AgentCount))
	r.locationCountGauge.Set(float64(s.LocationCount))
	r.journalLengthGauge.Set(float64(s.JournalLength))
	r.executedHeightGauge.Set(float64(s.ExecutedHeight))
	r.pendingBatchesGauge.Set(float64(s.PendingBatches))
	r.memAllocGauge.Set(float64(s.MemAlloc))
	r.goroutinesGauge.Set(float64(s.NumGoroutines))
	r.LogEvent(logrus.InfoLevel, "metrics recorded", nil)
}

// Run periodically records metrics until ctx is canceled.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Record()
		case <-ctx.Done():
			return
		}
	}
}

// StartServer exposes a Prometheus /metrics endpoint on addr.
func (r *Recorder) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.LogEvent(logrus.ErrorLevel, err.Error(), nil)
		}
	}()
	return srv
}
