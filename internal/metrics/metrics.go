package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics는 패널 동작 지표입니다. nil 수신자도 안전합니다.
type Metrics struct {
	Refreshes      *prometheus.CounterVec
	FrameFetches   *prometheus.CounterVec
	SchedulerTicks prometheus.Counter
	PlaybackTicks  prometheus.Counter
	Markers        prometheus.Gauge
	BreakerState   *prometheus.GaugeVec
}

// New는 지표를 생성하고 reg에 등록합니다
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trafficcam_refresh_total",
				Help: "Result set refreshes by status",
			},
			[]string{"status"},
		),
		FrameFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trafficcam_frame_fetch_total",
				Help: "Camera frame fetches by result (appended, unchanged, error)",
			},
			[]string{"result"},
		),
		SchedulerTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "trafficcam_scheduler_ticks_total",
			Help: "Refresh scheduler ticks that issued a fetch",
		}),
		PlaybackTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "trafficcam_playback_ticks_total",
			Help: "Playback frame timer ticks",
		}),
		Markers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trafficcam_markers",
			Help: "Markers currently placed on the map",
		}),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trafficcam_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
}

func (m *Metrics) ObserveRefresh(status string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(status).Inc()
}

// ObserveFrameFetch는 프레임 fetch 결과를 기록합니다
func (m *Metrics) ObserveFrameFetch(appended bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.FrameFetches.WithLabelValues("error").Inc()
	case appended:
		m.FrameFetches.WithLabelValues("appended").Inc()
	default:
		m.FrameFetches.WithLabelValues("unchanged").Inc()
	}
}

func (m *Metrics) SchedulerTick() {
	if m == nil {
		return
	}
	m.SchedulerTicks.Inc()
}

func (m *Metrics) PlaybackTick() {
	if m == nil {
		return
	}
	m.PlaybackTicks.Inc()
}

func (m *Metrics) SetMarkers(n int) {
	if m == nil {
		return
	}
	m.Markers.Set(float64(n))
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(state)
}
