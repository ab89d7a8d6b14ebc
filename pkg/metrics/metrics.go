package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics counts cache outcomes per named cache.
type CacheMetrics struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	stale    *prometheus.CounterVec
	degraded *prometheus.CounterVec
}

// NewCacheMetrics registers cache counters on the provided registerer.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Fresh cache hits.",
	}, []string{"cache"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache misses.",
	}, []string{"cache"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_stale_hits_total",
		Help: "Reads served from a stale entry while a refresh runs.",
	}, []string{"cache"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_degraded_total",
		Help: "Failed refreshes that kept the stale value past TTL.",
	}, []string{"cache"})
	reg.MustRegister(hits, misses, stale, degraded)
	return &CacheMetrics{hits: hits, misses: misses, stale: stale, degraded: degraded}
}

func (c *CacheMetrics) IncHit(cache string) {
	if c == nil || c.hits == nil {
		return
	}
	c.hits.WithLabelValues(normalizeLabel(cache)).Inc()
}

func (c *CacheMetrics) IncMiss(cache string) {
	if c == nil || c.misses == nil {
		return
	}
	c.misses.WithLabelValues(normalizeLabel(cache)).Inc()
}

func (c *CacheMetrics) IncStale(cache string) {
	if c == nil || c.stale == nil {
		return
	}
	c.stale.WithLabelValues(normalizeLabel(cache)).Inc()
}

func (c *CacheMetrics) IncDegraded(cache string) {
	if c == nil || c.degraded == nil {
		return
	}
	c.degraded.WithLabelValues(normalizeLabel(cache)).Inc()
}

// QueueMetrics records queue job outcomes and latencies per job type.
type QueueMetrics struct {
	duration  *prometheus.HistogramVec
	completed *prometheus.CounterVec
	retried   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	depth     *prometheus.GaugeVec
}

// NewQueueMetrics registers the queue metrics on the provided registerer.
func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	if reg == nil {
		return &QueueMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_job_duration_seconds",
		Help:    "Duration of queue job processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_completed_total",
		Help: "Jobs that completed successfully.",
	}, []string{"type"})
	retried := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_retried_total",
		Help: "Jobs re-queued after a retryable failure.",
	}, []string{"type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_failed_total",
		Help: "Jobs that failed permanently.",
	}, []string{"type"})
	depth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Waiting jobs per type.",
	}, []string{"type"})
	reg.MustRegister(duration, completed, retried, failed, depth)
	return &QueueMetrics{
		duration:  duration,
		completed: completed,
		retried:   retried,
		failed:    failed,
		depth:     depth,
	}
}

func (q *QueueMetrics) ObserveDuration(jobType string, d time.Duration) {
	if q == nil || q.duration == nil {
		return
	}
	q.duration.WithLabelValues(normalizeLabel(jobType)).Observe(d.Seconds())
}

func (q *QueueMetrics) IncCompleted(jobType string) {
	if q == nil || q.completed == nil {
		return
	}
	q.completed.WithLabelValues(normalizeLabel(jobType)).Inc()
}

func (q *QueueMetrics) IncRetried(jobType string) {
	if q == nil || q.retried == nil {
		return
	}
	q.retried.WithLabelValues(normalizeLabel(jobType)).Inc()
}

func (q *QueueMetrics) IncFailed(jobType string) {
	if q == nil || q.failed == nil {
		return
	}
	q.failed.WithLabelValues(normalizeLabel(jobType)).Inc()
}

func (q *QueueMetrics) SetDepth(jobType string, depth float64) {
	if q == nil || q.depth == nil {
		return
	}
	q.depth.WithLabelValues(normalizeLabel(jobType)).Set(depth)
}

// GatewayMetrics counts real-time deliveries.
type GatewayMetrics struct {
	broadcasts *prometheus.CounterVec
	buffered   prometheus.Counter
	sessions   prometheus.Gauge
}

// NewGatewayMetrics registers gateway counters on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_broadcasts_total",
		Help: "Events broadcast per room kind.",
	}, []string{"event"})
	buffered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_buffered_events_total",
		Help: "Events buffered for disconnected users.",
	})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_open_sessions",
		Help: "Currently connected client sessions.",
	})
	reg.MustRegister(broadcasts, buffered, sessions)
	return &GatewayMetrics{broadcasts: broadcasts, buffered: buffered, sessions: sessions}
}

func (g *GatewayMetrics) IncBroadcast(event string) {
	if g == nil || g.broadcasts == nil {
		return
	}
	g.broadcasts.WithLabelValues(normalizeLabel(event)).Inc()
}

func (g *GatewayMetrics) IncBuffered() {
	if g == nil || g.buffered == nil {
		return
	}
	g.buffered.Inc()
}

func (g *GatewayMetrics) SessionOpened() {
	if g == nil || g.sessions == nil {
		return
	}
	g.sessions.Inc()
}

func (g *GatewayMetrics) SessionClosed() {
	if g == nil || g.sessions == nil {
		return
	}
	g.sessions.Dec()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
