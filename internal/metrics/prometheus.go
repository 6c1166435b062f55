package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagemill"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	requestDuration *prom.HistogramVec
	renderDuration  *prom.HistogramVec
	rebuilds        *prom.CounterVec
	exportedPages   *prom.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		requestDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dev server request duration by status code",
			Buckets:   prom.DefBuckets,
		}, []string{"status"}),
		renderDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Page load and render duration by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"}),
		rebuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "urlmap_rebuilds_total",
			Help:      "URL map rebuilds by result",
		}, []string{"result"}),
		exportedPages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "exported_pages_total",
			Help:      "Pages visited by static exports by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.requestDuration, pr.renderDuration, pr.rebuilds, pr.exportedPages)
	return pr
}

func (p *PrometheusRecorder) ObserveRequest(status int, d time.Duration) {
	if p == nil {
		return
	}
	p.requestDuration.WithLabelValues(strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRender(outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.renderDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncURLMapRebuild(ok bool) {
	if p == nil {
		return
	}
	result := "failed"
	if ok {
		result = "success"
	}
	p.rebuilds.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncExportedPage(outcome string) {
	if p == nil {
		return
	}
	p.exportedPages.WithLabelValues(outcome).Inc()
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
