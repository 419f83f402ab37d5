package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/royalacademy/backoffice/core"
)

type metrics struct {
	ops       *prometheus.CounterVec
	durations *prometheus.HistogramVec
	slotBytes *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "royalacademy",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Record store operations by operation and result.",
		}, []string{"op", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "royalacademy",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Record store operation latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		slotBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "royalacademy",
			Subsystem: "store",
			Name:      "slot_size_bytes",
			Help:      "Size of the last value written to each slot.",
		}, []string{"slot"}),
	}
	for _, c := range []prometheus.Collector{m.ops, m.durations, m.slotBytes} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering store metrics")
		}
	}
	return m, nil
}

func (m *metrics) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, core.ErrSlotNotFound):
		result = "not_found"
	case errors.Is(err, core.ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// instrumentedStore records metrics around every call to the wrapped store.
type instrumentedStore struct {
	core.RecordStore
	m *metrics
}

// Instrument wraps store so that its operations are reported to reg.
func Instrument(store core.RecordStore, reg prometheus.Registerer) (core.RecordStore, error) {
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &instrumentedStore{RecordStore: store, m: m}, nil
}

func (s *instrumentedStore) Get(ctx context.Context, name string) (core.Slot, error) {
	start := time.Now()
	slot, err := s.RecordStore.Get(ctx, name)
	s.m.observe("get", start, err)
	return slot, err
}

func (s *instrumentedStore) Commit(ctx context.Context, writes ...core.Write) error {
	start := time.Now()
	err := s.RecordStore.Commit(ctx, writes...)
	s.m.observe("commit", start, err)
	if err == nil {
		for _, w := range writes {
			s.m.slotBytes.WithLabelValues(w.Name).Set(float64(len(w.Value)))
		}
	}
	return err
}
