package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the
// trading loop. All methods are safe for concurrent use and tolerate a
// nil receiver.
type Metrics struct {
	cycles            uint64
	skippedCycles     uint64
	ordersPlaced      uint64
	ordersReused      uint64
	ordersCanceled    uint64
	fills             uint64
	emergencyCancels  uint64
	riskDenies        uint64
	queueDrops        uint64
	marketReconnects  uint64
	accountReconnects uint64

	placeLatency  LatencyStats
	cancelLatency LatencyStats
	cycleLatency  LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Cycles            uint64
	SkippedCycles     uint64
	OrdersPlaced      uint64
	OrdersReused      uint64
	OrdersCanceled    uint64
	Fills             uint64
	EmergencyCancels  uint64
	RiskDenies        uint64
	QueueDrops        uint64
	MarketReconnects  uint64
	AccountReconnects uint64
	PlaceLatency      LatencySnapshot
	CancelLatency     LatencySnapshot
	CycleLatency      LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncCycle counts one controller decision cycle.
func (m *Metrics) IncCycle() {
	if m != nil {
		atomic.AddUint64(&m.cycles, 1)
	}
}

// IncSkippedCycle counts a cycle skipped for stale or invalid data.
func (m *Metrics) IncSkippedCycle() {
	if m != nil {
		atomic.AddUint64(&m.skippedCycles, 1)
	}
}

// IncOrderPlaced counts a successful placement.
func (m *Metrics) IncOrderPlaced() {
	if m != nil {
		atomic.AddUint64(&m.ordersPlaced, 1)
	}
}

// IncOrderReused counts a cycle that kept the working order.
func (m *Metrics) IncOrderReused() {
	if m != nil {
		atomic.AddUint64(&m.ordersReused, 1)
	}
}

// IncOrderCanceled counts a cancel issued by the controller.
func (m *Metrics) IncOrderCanceled() {
	if m != nil {
		atomic.AddUint64(&m.ordersCanceled, 1)
	}
}

// IncFill counts a terminal fill applied to the position.
func (m *Metrics) IncFill() {
	if m != nil {
		atomic.AddUint64(&m.fills, 1)
	}
}

// IncEmergencyCancel counts a cancel forced by feed loss.
func (m *Metrics) IncEmergencyCancel() {
	if m != nil {
		atomic.AddUint64(&m.emergencyCancels, 1)
	}
}

// IncRiskDeny counts a placement denied by the risk engine.
func (m *Metrics) IncRiskDeny() {
	if m != nil {
		atomic.AddUint64(&m.riskDenies, 1)
	}
}

// IncQueueDrop records a fill event dropped by a full queue.
func (m *Metrics) IncQueueDrop() {
	if m != nil {
		atomic.AddUint64(&m.queueDrops, 1)
	}
}

// IncMarketReconnect counts a market feed reconnect attempt.
func (m *Metrics) IncMarketReconnect() {
	if m != nil {
		atomic.AddUint64(&m.marketReconnects, 1)
	}
}

// IncAccountReconnect counts an account feed reconnect attempt.
func (m *Metrics) IncAccountReconnect() {
	if m != nil {
		atomic.AddUint64(&m.accountReconnects, 1)
	}
}

// ObservePlace measures order placement latency.
func (m *Metrics) ObservePlace(d time.Duration) {
	if m == nil {
		return
	}
	m.placeLatency.Observe(d)
}

// ObserveCancel measures cancel latency.
func (m *Metrics) ObserveCancel(d time.Duration) {
	if m == nil {
		return
	}
	m.cancelLatency.Observe(d)
}

// ObserveCycle measures a full decision cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Cycles:            atomic.LoadUint64(&m.cycles),
		SkippedCycles:     atomic.LoadUint64(&m.skippedCycles),
		OrdersPlaced:      atomic.LoadUint64(&m.ordersPlaced),
		OrdersReused:      atomic.LoadUint64(&m.ordersReused),
		OrdersCanceled:    atomic.LoadUint64(&m.ordersCanceled),
		Fills:             atomic.LoadUint64(&m.fills),
		EmergencyCancels:  atomic.LoadUint64(&m.emergencyCancels),
		RiskDenies:        atomic.LoadUint64(&m.riskDenies),
		QueueDrops:        atomic.LoadUint64(&m.queueDrops),
		MarketReconnects:  atomic.LoadUint64(&m.marketReconnects),
		AccountReconnects: atomic.LoadUint64(&m.accountReconnects),
		PlaceLatency:      m.placeLatency.Snapshot(),
		CancelLatency:     m.cancelLatency.Snapshot(),
		CycleLatency:      m.cycleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
