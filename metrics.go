package cmdlog

import (
	"sync/atomic"
)

// latencyBuckets define the histogram edges in nanoseconds, log-spaced from
// 1us to 1s.
var latencyBuckets = [...]uint64{
	1_000, 10_000, 100_000,
	1_000_000, 10_000_000, 100_000_000,
	1_000_000_000,
}

// histogram is a fixed-bucket latency histogram with one overflow bucket.
type histogram struct {
	counts [len(latencyBuckets) + 1]uint64
	sum    uint64
	n      uint64
}

func (h *histogram) observe(ns uint64) {
	atomic.AddUint64(&h.sum, ns)
	atomic.AddUint64(&h.n, 1)
	for i, edge := range latencyBuckets {
		if ns <= edge {
			atomic.AddUint64(&h.counts[i], 1)
			return
		}
	}
	atomic.AddUint64(&h.counts[len(latencyBuckets)], 1)
}

// HistogramSnapshot is a point-in-time copy of histogram state, safe to read without
// racing the live counters.
type HistogramSnapshot struct {
	Buckets [len(latencyBuckets) + 1]uint64
	Sum     uint64
	Count   uint64
}

func (h *histogram) snapshot() HistogramSnapshot {
	var s HistogramSnapshot
	for i := range h.counts {
		s.Buckets[i] = atomic.LoadUint64(&h.counts[i])
	}
	s.Sum = atomic.LoadUint64(&h.sum)
	s.Count = atomic.LoadUint64(&h.n)
	return s
}

// Metrics accumulates operation counters and latency histograms for a
// CommandLog. All fields are updated via atomics so Metrics can be read
// concurrently with the operations it observes.
type Metrics struct {
	AppendOps   uint64
	ReadOps     uint64
	EvictOps    uint64
	SeekOps     uint64
	AppendBytes uint64
	ReadBytes   uint64
	ErrorCount  uint64

	appendLatency histogram
	readLatency   histogram
	seekLatency   histogram
}

// NewMetrics returns a zeroed Metrics ready for use.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) ObserveAppend(bytes uint64, latencyNs uint64, success bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.AppendOps, 1)
	if success {
		atomic.AddUint64(&m.AppendBytes, bytes)
	} else {
		atomic.AddUint64(&m.ErrorCount, 1)
	}
	m.appendLatency.observe(latencyNs)
}

func (m *Metrics) ObserveRead(bytes uint64, latencyNs uint64, success bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ReadOps, 1)
	if success {
		atomic.AddUint64(&m.ReadBytes, bytes)
	} else {
		atomic.AddUint64(&m.ErrorCount, 1)
	}
	m.readLatency.observe(latencyNs)
}

func (m *Metrics) ObserveEvict(success bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.EvictOps, 1)
	if !success {
		atomic.AddUint64(&m.ErrorCount, 1)
	}
}

func (m *Metrics) ObserveSeek(latencyNs uint64, success bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.SeekOps, 1)
	if !success {
		atomic.AddUint64(&m.ErrorCount, 1)
	}
	m.seekLatency.observe(latencyNs)
}

// AppendLatency, ReadLatency and SeekLatency return histogram snapshots
// for external exposition (e.g. an expvar or Prometheus adapter).
func (m *Metrics) AppendLatency() HistogramSnapshot { return m.appendLatency.snapshot() }
func (m *Metrics) ReadLatency() HistogramSnapshot   { return m.readLatency.snapshot() }
func (m *Metrics) SeekLatency() HistogramSnapshot   { return m.seekLatency.snapshot() }

// noopObserver discards every observation. It is the default Observer used
// when a CommandLog is constructed without one.
type noopObserver struct{}

func (noopObserver) ObserveAppend(uint64, uint64, bool) {}
func (noopObserver) ObserveRead(uint64, uint64, bool)   {}
func (noopObserver) ObserveEvict(bool)                  {}
func (noopObserver) ObserveSeek(uint64, bool)           {}
