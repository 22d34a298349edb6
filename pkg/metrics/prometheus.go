package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoads"

// Prometheus exposes metrics through its own registry.
type Prometheus struct {
	registry         *prometheus.Registry
	cycles           *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	raises           *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	resetCampaigns   *prometheus.CounterVec
	events           *prometheus.CounterVec
	schedulerEnabled prometheus.Gauge
	componentHealth  *prometheus.GaugeVec
}

// NewPrometheus creates and registers all collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Decision cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a decision cycle.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		raises: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_raises_total",
			Help:      "Budget raise attempts by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent by kind.",
		}, []string{"kind"}),
		resetCampaigns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_campaigns_total",
			Help:      "Campaigns processed by the daily reset by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Outbound events by delivery status.",
		}, []string{"status"}),
		schedulerEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_enabled",
			Help:      "1 while the recurring check is scheduled.",
		}),
		componentHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_health",
			Help:      "Latest health check per component: 1 healthy, 0.5 degraded, 0 unhealthy.",
		}, []string{"component"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.cycles,
		p.cycleDuration,
		p.raises,
		p.notifications,
		p.resetCampaigns,
		p.events,
		p.schedulerEnabled,
		p.componentHealth,
	)
	return p
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) ObserveCycle(outcome string, duration time.Duration) {
	p.cycles.WithLabelValues(outcome).Inc()
	p.cycleDuration.Observe(duration.Seconds())
}

func (p *Prometheus) IncBudgetRaise(result string) {
	p.raises.WithLabelValues(result).Inc()
}

func (p *Prometheus) IncNotification(kind string) {
	p.notifications.WithLabelValues(kind).Inc()
}

func (p *Prometheus) IncResetCampaign(result string) {
	p.resetCampaigns.WithLabelValues(result).Inc()
}

func (p *Prometheus) IncEventPublished(status string) {
	p.events.WithLabelValues(status).Inc()
}

func (p *Prometheus) SetSchedulerEnabled(enabled bool) {
	if enabled {
		p.schedulerEnabled.Set(1)
		return
	}
	p.schedulerEnabled.Set(0)
}

// SetComponentHealth records the latest health check result of a component.
func (p *Prometheus) SetComponentHealth(component, status string) {
	var v float64
	switch status {
	case "healthy":
		v = 1
	case "degraded":
		v = 0.5
	}
	p.componentHealth.WithLabelValues(component).Set(v)
}
