package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RecordingCounter returns the number of archived call recordings.
type RecordingCounter interface {
	Count(ctx context.Context) (int64, error)
}

// TaskGauge exposes the number of in-flight background tasks.
type TaskGauge interface {
	InFlight() int
}

// Metrics owns the gateway's registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	smsSent         *prometheus.CounterVec
	smsReceived     *prometheus.CounterVec
	classifications *prometheus.CounterVec
	trackLookups    *prometheus.CounterVec
	recordings      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		smsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbor_twilio_sms_sent_total",
			Help: "Outbound SMS dispatch attempts by result",
		}, []string{"result"}),
		smsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbor_twilio_sms_received_total",
			Help: "Inbound SMS webhooks by outcome",
		}, []string{"outcome"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbor_twilio_classifications_total",
			Help: "Intent classifications by intent label",
		}, []string{"intent"}),
		trackLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbor_twilio_track_lookups_total",
			Help: "Current track lookups by result",
		}, []string{"result"}),
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbor_twilio_recording_callbacks_total",
			Help: "Recording callbacks by terminal state",
		}, []string{"state"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.smsSent, m.smsReceived, m.classifications, m.trackLookups, m.recordings,
	)
	return m
}

// Register adds a scrape-time collector for stored recordings and task load.
// Either provider may be nil.
func (m *Metrics) Register(recs RecordingCounter, tasks TaskGauge) {
	if m == nil {
		return
	}
	m.reg.MustRegister(newCollector(recs, tasks, time.Now()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) SMSSent(result string) {
	if m != nil {
		m.smsSent.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SMSReceived(outcome string) {
	if m != nil {
		m.smsReceived.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Classified(intent string) {
	if m != nil {
		m.classifications.WithLabelValues(intent).Inc()
	}
}

func (m *Metrics) TrackLookup(result string) {
	if m != nil {
		m.trackLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Recording(state string) {
	if m != nil {
		m.recordings.WithLabelValues(state).Inc()
	}
}

// collector gathers gauges from providers at scrape time.
type collector struct {
	recs      RecordingCounter
	tasks     TaskGauge
	startTime time.Time

	recordingsDesc *prometheus.Desc
	tasksDesc      *prometheus.Desc
	uptimeDesc     *prometheus.Desc
}

func newCollector(recs RecordingCounter, tasks TaskGauge, start time.Time) *collector {
	return &collector{
		recs:      recs,
		tasks:     tasks,
		startTime: start,
		recordingsDesc: prometheus.NewDesc(
			"wbor_twilio_recordings_stored",
			"Number of call recordings in the call log",
			nil, nil,
		),
		tasksDesc: prometheus.NewDesc(
			"wbor_twilio_tasks_in_flight",
			"Background tasks currently running",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"wbor_twilio_uptime_seconds",
			"Seconds since the gateway process started",
			nil, nil,
		),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.recordingsDesc
	ch <- c.tasksDesc
	ch <- c.uptimeDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.recs != nil {
		n, err := c.recs.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count recordings", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(c.recordingsDesc, prometheus.GaugeValue, float64(n))
		}
	}
	if c.tasks != nil {
		ch <- prometheus.MustNewConstMetric(c.tasksDesc, prometheus.GaugeValue, float64(c.tasks.InFlight()))
	}
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}
