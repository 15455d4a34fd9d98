package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_calls_active",
		Help: "Currently active call sessions",
	})

	CallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_calls_total",
		Help: "Total calls processed",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_stage_duration_seconds",
		Help:    "Per-stage latency (stt/llm/tts)",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_e2e_duration_seconds",
		Help:    "End-to-end latency from end-of-speech to the complete LLM reply text",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Error counts by stage and error type",
	}, []string{"stage", "error_type"})

	AudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_chunks_processed_total",
		Help: "Total audio chunks received",
	})

	SpeechSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vad_speech_segments_total",
		Help: "Speech segments detected by VAD",
	})

	TurnTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "turn_transitions_total",
		Help: "TurnManager state transitions by destination state",
	}, []string{"to_state"})

	BargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "turn_barge_ins_total",
		Help: "Barge-in events where the caller interrupted SPEAKING",
	})

	OutboundQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_outbound_queue_depth",
		Help: "Current depth of the most recently observed OutboundQueue",
	})

	OutboundFrameInterval = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_outbound_frame_interval_seconds",
		Help:    "Measured interval between consecutive outbound media frames",
		Buckets: []float64{0.010, 0.015, 0.018, 0.020, 0.022, 0.025, 0.030, 0.040},
	})
)
