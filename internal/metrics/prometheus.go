package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scribe"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	posts         *prom.GaugeVec
	fileChanges   *prom.CounterVec
}

// NewPrometheusRecorder registers the build collectors on reg, or on a new
// registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	p := &PrometheusRecorder{
		reg: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Builds by outcome",
		}, []string{"outcome"}),
		posts: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "posts",
			Help:      "Posts seen by the last build, by state",
		}, []string{"state"}),
		fileChanges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "published_files_total",
			Help:      "Files changed in the live output, by change type",
		}, []string{"change"}),
	}
	reg.MustRegister(p.stageDuration, p.buildDuration, p.buildOutcome, p.posts, p.fileChanges)
	return p
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetPosts(state string, n int) {
	p.posts.WithLabelValues(state).Set(float64(n))
}

func (p *PrometheusRecorder) AddFileChanges(change string, n int) {
	p.fileChanges.WithLabelValues(change).Add(float64(n))
}

// Handler serves the recorder's registry in the Prometheus text format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}
