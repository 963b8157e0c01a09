// Package telemetry turns what the device does into Prometheus metrics.
// Observations are published on an event dispatcher so that the tasks
// reporting them never wait on a subscriber.
package telemetry

import (
	"net/http"
	"time"

	"github.com/kelindar/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"libdb.so/halo/render"
	"libdb.so/halo/state"
)

const namespace = "halo"

// Recorder observes the mode controller and the renderer. It implements both
// halo.Observer and render.Observer.
type Recorder struct {
	dispatcher *event.Dispatcher
	registry   *prometheus.Registry
	unsub      []func()

	frames      *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	effects     prometheus.Gauge
	mode        *prometheus.GaugeVec
	transitions prometheus.Counter
	inputs      *prometheus.CounterVec
}

var _ render.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Recorder{
		dispatcher: event.NewDispatcher(),
		registry:   reg,

		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames rendered, by result",
		}, []string{"result"}),

		stages: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_stage_seconds",
			Help:      "Time spent in each stage of a frame",
			Buckets:   prometheus.ExponentialBuckets(50e-6, 2, 12),
		}, []string{"stage"}),

		effects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "effects",
			Help:      "Effects on the stack after the last frame",
		}),

		mode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "1 for the current mode, 0 otherwise",
		}, []string{"mode"}),

		transitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_transitions_total",
			Help:      "Mode transitions since start",
		}),

		inputs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_events_total",
			Help:      "Events dequeued by the mode controller, by event",
		}, []string{"event"}),
	}

	for _, m := range state.Modes {
		r.mode.WithLabelValues(m.String()).Set(0)
	}
	r.mode.WithLabelValues(state.PreStartup.String()).Set(1)

	r.unsub = []func(){
		event.Subscribe(r.dispatcher, r.onModeChanged),
		event.Subscribe(r.dispatcher, r.onInputReceived),
		event.Subscribe(r.dispatcher, r.onFrameRendered),
	}

	return r
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SubscribeModes calls f for every mode transition. The returned function
// unsubscribes.
func (r *Recorder) SubscribeModes(f func(ModeChangedEvent)) func() {
	return event.Subscribe(r.dispatcher, f)
}

// Close unsubscribes the metric handlers.
func (r *Recorder) Close() {
	for _, unsub := range r.unsub {
		unsub()
	}
	r.unsub = nil
}

// ModeChanged implements halo.Observer.
func (r *Recorder) ModeChanged(from, to state.Mode) {
	event.Publish(r.dispatcher, ModeChangedEvent{From: from, To: to, Time: time.Now()})
}

// EventReceived implements halo.Observer.
func (r *Recorder) EventReceived(ev state.Event) {
	event.Publish(r.dispatcher, InputReceivedEvent{Event: ev, Time: time.Now()})
}

// FrameRendered implements render.Observer.
func (r *Recorder) FrameRendered(stats render.FrameStats, err error) {
	event.Publish(r.dispatcher, FrameRenderedEvent{Stats: stats, Err: err})
}

func (r *Recorder) onModeChanged(ev ModeChangedEvent) {
	r.mode.WithLabelValues(ev.From.String()).Set(0)
	r.mode.WithLabelValues(ev.To.String()).Set(1)
	r.transitions.Inc()
}

func (r *Recorder) onInputReceived(ev InputReceivedEvent) {
	r.inputs.WithLabelValues(ev.Event.String()).Inc()
}

func (r *Recorder) onFrameRendered(ev FrameRenderedEvent) {
	if ev.Err != nil {
		r.frames.WithLabelValues("error").Inc()
		return
	}

	r.frames.WithLabelValues("ok").Inc()
	r.effects.Set(float64(ev.Stats.Effects))
	r.stages.WithLabelValues("composite").Observe(ev.Stats.Composite.Seconds())
	r.stages.WithLabelValues("encode").Observe(ev.Stats.Encode.Seconds())
	r.stages.WithLabelValues("transmit").Observe(ev.Stats.Transmit.Seconds())
}
