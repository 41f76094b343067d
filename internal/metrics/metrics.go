package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the bot's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pollsOpened       prometheus.Counter
	pollsDeduplicated prometheus.Counter
	pollsSettled      *prometheus.CounterVec
	missedJobs        prometheus.Counter
	events            *prometheus.CounterVec
	commands          *prometheus.CounterVec
	handlerFailures   prometheus.Counter
	pendingJobs       prometheus.GaugeFunc
}

// New registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pollsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbot_polls_opened_total",
			Help: "deletion polls opened",
		}),
		pollsDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbot_polls_deduplicated_total",
			Help: "delete requests answered with an already open poll",
		}),
		pollsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modbot_polls_settled_total",
			Help: "deletion polls settled, by trigger and outcome",
		}, []string{"reason", "outcome"}),
		missedJobs: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbot_missed_jobs_recovered_total",
			Help: "expiry jobs recovered after their fire time had passed",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modbot_events_total",
			Help: "inbound updates by classified kind",
		}, []string{"kind"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modbot_commands_total",
			Help: "group commands handled, by name",
		}, []string{"command"}),
		handlerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbot_handler_failures_total",
			Help: "inbound updates whose processing failed or panicked",
		}),
	}
}

// TrackPendingJobs exports fn as the armed expiry timer gauge
func (m *Metrics) TrackPendingJobs(reg prometheus.Registerer, fn func() int) {
	if m == nil {
		return
	}
	m.pendingJobs = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "modbot_scheduler_pending_jobs",
		Help: "expiry timers currently armed",
	}, func() float64 { return float64(fn()) })
}

func (m *Metrics) PollOpened() {
	if m != nil {
		m.pollsOpened.Inc()
	}
}

func (m *Metrics) PollDeduplicated() {
	if m != nil {
		m.pollsDeduplicated.Inc()
	}
}

func (m *Metrics) PollSettled(reason, outcome string) {
	if m != nil {
		m.pollsSettled.WithLabelValues(reason, outcome).Inc()
	}
}

func (m *Metrics) MissedJobRecovered() {
	if m != nil {
		m.missedJobs.Inc()
	}
}

func (m *Metrics) Event(kind string) {
	if m != nil {
		m.events.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Command(name string) {
	if m != nil {
		m.commands.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) HandlerFailure() {
	if m != nil {
		m.handlerFailures.Inc()
	}
}
