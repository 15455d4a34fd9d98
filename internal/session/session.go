package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/cognition"
	"github.com/duplexline/turnbridge/internal/metrics"
	"github.com/duplexline/turnbridge/internal/store"
	"github.com/duplexline/turnbridge/internal/trace"
	"github.com/duplexline/turnbridge/internal/transport"
	"github.com/duplexline/turnbridge/internal/turn"
	"github.com/duplexline/turnbridge/internal/vad"
)

// Config holds everything a Session needs that is shared across calls:
// pluggable cognition backends, the conversation store, tracing, and the
// wire profile negotiated at accept.
type Config struct {
	SessionID    string
	Profile      audio.Profile
	TurnConfig   turn.Config
	VAD          vad.VAD
	STT          cognition.Transcriber
	LLM          *cognition.AgentLLM
	TTS          cognition.Synthesizer
	Store        store.ConversationStore
	Tracer       *trace.Tracer
	UserID       string
	SystemPrompt string
	LLMModel     string
	LLMEngine    string
	STTEngine    string
	TTSEngine    string
	HistoryLimit int
}

// Session owns every piece of per-call state: the turn-taking machine, the
// utterance buffer, the outbound queue, and the handle to whichever
// CognitionJob is currently in flight. All fields here are private to one
// call; the only thing shared across sessions is the immutable configuration
// each Session is built from (codec tables, VAD model weights).
type Session struct {
	id      string
	cfg     Config
	adapter transport.Adapter

	turnMgr *turn.Manager

	inFrameSamples int
	inSampleRate   int

	mu        sync.Mutex
	utterance []int16
	job       *cognitionJob

	outbound *OutboundQueue
}

// New creates a Session bound to one transport connection. The caller is
// responsible for calling Run, which blocks until the session ends.
func New(adapter transport.Adapter, cfg Config) *Session {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = store.DefaultHistoryLimit
	}
	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		id:             id,
		cfg:            cfg,
		adapter:        adapter,
		turnMgr:        turn.New(cfg.TurnConfig),
		inFrameSamples: audio.FrameSamples(cfg.Profile),
		inSampleRate:   audio.SampleRate(cfg.Profile),
		outbound:       NewOutboundQueue(),
	}
}

// Run drives the session to completion: it starts the egress loop and runs
// ingest on the calling goroutine until the transport closes or the context
// is cancelled. Any in-flight CognitionJob is cancelled on return.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.CallsActive.Inc()
	metrics.CallsTotal.Inc()
	defer metrics.CallsActive.Dec()

	slog.Info("call started", "session_id", s.id, "profile", s.cfg.Profile, "user_id", s.cfg.UserID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runEgress(ctx)
	}()

	s.runIngest(ctx)
	cancel()
	s.cancelCurrentJob()
	wg.Wait()

	slog.Info("call ended", "session_id", s.id)
}

// currentState returns the turn state under the session mutex, since both
// the ingest loop and a running cognition job observe and mutate it.
func (s *Session) currentState() turn.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnMgr.Current()
}

// processFrame feeds one VAD probability into the turn machine and returns
// the resulting state and event, under the session mutex.
func (s *Session) processFrame(p float64) (turn.State, turn.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnMgr.ProcessFrame(p)
}

// beginSpeaking transitions THINKING->SPEAKING; called by the cognition job
// when it enqueues its first TTS frame.
func (s *Session) beginSpeaking() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnMgr.BeginSpeaking()
}

// endSpeaking transitions SPEAKING->LISTENING; called by the cognition job
// once the TTS stream is exhausted and the outbound queue is empty.
func (s *Session) endSpeaking() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnMgr.EndSpeaking()
}

// returnToListening force-resets the turn machine after a failed turn.
func (s *Session) returnToListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnMgr.ReturnToListening()
}

// appendUtterance appends decoded PCM to the buffer while RECEIVING.
func (s *Session) appendUtterance(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utterance = append(s.utterance, samples...)
}

// snapshotAndClearUtterance atomically takes ownership of the buffered
// utterance and clears it, per the UtteranceBuffer invariant.
func (s *Session) snapshotAndClearUtterance() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.utterance
	s.utterance = nil
	return snap
}

// emitState sends a {event:"state"} message and records the transition metric.
func (s *Session) emitState(state turn.State) {
	metrics.TurnTransitions.WithLabelValues(string(state)).Inc()
	if err := s.adapter.WriteMessage(transport.StateMessage(string(state))); err != nil {
		slog.Warn("emit state failed", "session_id", s.id, "error", err)
	}
}

// emitTranscript sends a {event:"transcript"} message.
func (s *Session) emitTranscript(role, text string) {
	if err := s.adapter.WriteMessage(transport.TranscriptMessage(role, text)); err != nil {
		slog.Warn("emit transcript failed", "session_id", s.id, "error", err)
	}
}

// emitClear sends a {event:"clear"} barge-in message.
func (s *Session) emitClear() {
	if err := s.adapter.WriteMessage(transport.ClearMessage()); err != nil {
		slog.Warn("emit clear failed", "session_id", s.id, "error", err)
	}
}

// frameDuration is the fixed pacing cadence for outbound media.
const frameDuration = audio.FrameDurationMs * time.Millisecond
