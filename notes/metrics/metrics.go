package metrics

import (
	"fmt"
	"io"
	"sync/atomic"

	vm "github.com/VictoriaMetrics/metrics"
)

// Metrics holds the counters of one notes server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	set            *vm.Set
	activeSessions atomic.Int64
	rejected       *vm.Counter
	sessions       *vm.Counter
}

// New creates a metrics set with the session gauge registered.
func New() *Metrics {
	m := &Metrics{set: vm.NewSet()}
	m.set.NewGauge("dnotes_sessions_active", func() float64 {
		return float64(m.activeSessions.Load())
	})
	m.sessions = m.set.NewCounter("dnotes_sessions_total")
	m.rejected = m.set.NewCounter("dnotes_sessions_rejected_total")
	return m
}

// SessionOpened is called when a session enters its message loop.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
	m.activeSessions.Add(1)
}

// SessionClosed is called when the message loop of a session ends.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Add(-1)
}

// SessionRejected is called when the auth gate refuses a connection.
func (m *Metrics) SessionRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// CommandHandled counts a response sent for command with the given status.
// command is "" for frames that could not be decoded.
func (m *Metrics) CommandHandled(command string, status uint16) {
	if m == nil {
		return
	}
	if command == "" {
		command = "invalid"
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`dnotes_commands_total{command=%q,status="%d"}`, command, status)).Inc()
}

// ActiveSessions returns the number of sessions currently in their message loop.
func (m *Metrics) ActiveSessions() int64 {
	if m == nil {
		return 0
	}
	return m.activeSessions.Load()
}

// WritePrometheus writes all counters and the process metrics to w.
func (m *Metrics) WritePrometheus(w io.Writer) {
	if m != nil {
		m.set.WritePrometheus(w)
	}
	vm.WriteProcessMetrics(w)
}
