package influxdb

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/neasmart-core/internal/installation"
)

// PointWriter accepts points for writing. *Client implements it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Logger defines the logging interface used by the exporter.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Exporter writes a snapshot of every installation on each store change.
type Exporter struct {
	writer PointWriter
	store  *installation.Store
	logger Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel func()
}

// NewExporter creates an exporter that writes store snapshots to w.
func NewExporter(w PointWriter, store *installation.Store) *Exporter {
	return &Exporter{
		writer: w,
		store:  store,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the exporter.
func (e *Exporter) SetLogger(logger Logger) {
	e.logger = logger
}

// Export writes the current snapshot once and returns the number of
// points written. A store without installations writes nothing.
func (e *Exporter) Export() int {
	ts := e.now()
	n := 0
	for _, in := range e.store.Installations() {
		e.writer.WritePoint(InstallationPoint(in, ts))
		n++
		for _, p := range ChannelPoints(in, ts) {
			e.writer.WritePoint(p)
			n++
		}
	}
	e.logger.Debug("exported installation snapshot", "points", n)
	return n
}

// Start exports the current snapshot and then every store change until
// the returned function is called. Calling Start again replaces the
// previous subscription.
func (e *Exporter) Start() (stop func()) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	cancel := e.store.Subscribe(func() { e.Export() })
	e.cancel = cancel
	e.mu.Unlock()

	e.Export()
	return cancel
}
