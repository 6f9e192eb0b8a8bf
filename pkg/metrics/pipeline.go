package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PipelineMetrics records ranking and image resolution activity.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	rankingDuration    *prometheus.HistogramVec
	rankingFailures    prometheus.Counter
	imageResolutions   *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	rankingDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ranking_duration_seconds",
		Help:    "Duration of rank-and-enrich requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"metric"})
	rankingFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ranking_failures_total",
		Help: "Ranking requests that failed at the aggregate source.",
	})
	imageResolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_resolutions_total",
		Help: "Image URL resolutions by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	resolutionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "image_resolution_duration_seconds",
		Help:    "Duration of single image URL resolutions in seconds.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5},
	}, []string{"strategy"})
	reg.MustRegister(rankingDuration, rankingFailures, imageResolutions, resolutionDuration)
	return &PipelineMetrics{
		rankingDuration:    rankingDuration,
		rankingFailures:    rankingFailures,
		imageResolutions:   imageResolutions,
		resolutionDuration: resolutionDuration,
	}
}

// ObserveRanking records the duration of one ranking request.
func (p *PipelineMetrics) ObserveRanking(metric string, duration time.Duration) {
	if p == nil || p.rankingDuration == nil {
		return
	}
	p.rankingDuration.WithLabelValues(normalizeLabel(metric)).Observe(duration.Seconds())
}

// IncRankingFailure counts a ranking request that failed at the source.
func (p *PipelineMetrics) IncRankingFailure() {
	if p == nil || p.rankingFailures == nil {
		return
	}
	p.rankingFailures.Inc()
}

// ObserveResolution records the outcome and latency of one image resolution.
func (p *PipelineMetrics) ObserveResolution(strategy string, ok bool, duration time.Duration) {
	if p == nil || p.imageResolutions == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	strategy = normalizeLabel(strategy)
	p.imageResolutions.WithLabelValues(strategy, outcome).Inc()
	p.resolutionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
