package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Metrics struct {
	activeConns    atomic.Int64
	framesDropped  atomic.Uint64
	broadcasts     atomic.Uint64
	flushedSeconds atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn() {
	m.activeConns.Add(1)
}

func (m *Metrics) DecConn() {
	m.activeConns.Add(-1)
}

func (m *Metrics) IncDropped() {
	m.framesDropped.Add(1)
}

func (m *Metrics) IncBroadcast() {
	m.broadcasts.Add(1)
}

func (m *Metrics) AddFlushed(seconds int64) {
	if seconds > 0 {
		m.flushedSeconds.Add(uint64(seconds))
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"active_connections":    m.activeConns.Load(),
		"frames_dropped_total":  m.framesDropped.Load(),
		"broadcasts_total":      m.broadcasts.Load(),
		"flushed_seconds_total": m.flushedSeconds.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
