package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/cognition"
	"github.com/duplexline/turnbridge/internal/store"
	"github.com/duplexline/turnbridge/internal/transport"
	"github.com/duplexline/turnbridge/internal/turn"
	"github.com/duplexline/turnbridge/internal/vad"
)

// fakeAdapter is an in-memory transport.Adapter. Inbound messages are fed
// through in; every WriteMessage call is recorded and mirrored to out so a
// test can block until a particular message appears.
type fakeAdapter struct {
	mu     sync.Mutex
	in     chan transport.Message
	out    chan transport.Message
	closed bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{in: make(chan transport.Message, 256), out: make(chan transport.Message, 256)}
}

func (a *fakeAdapter) ReadMessage() (transport.Message, error) {
	m, ok := <-a.in
	if !ok {
		return transport.Message{}, errors.New("fake adapter closed")
	}
	return m, nil
}

func (a *fakeAdapter) WriteMessage(m transport.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("fake adapter closed")
	}
	select {
	case a.out <- m:
	default:
	}
	return nil
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.in)
	}
	return nil
}

func (a *fakeAdapter) sendMedia(wire []byte) {
	a.in <- transport.EncodeFrame(wire)
}

// waitForState drains a until it sees a {event:"state", state: want} message
// or the timeout elapses.
func waitForState(t *testing.T, a *fakeAdapter, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case m := <-a.out:
			if m.Event == transport.EventState && m.State == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %q", want)
		}
	}
}

// scriptedVAD returns probabilities from a fixed list, ignoring sample
// content, then repeats the final value for any extra calls.
type scriptedVAD struct {
	mu     sync.Mutex
	probs  []float64
	cursor int
}

func (v *scriptedVAD) Process(_ []int16) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cursor >= len(v.probs) {
		return v.probs[len(v.probs)-1]
	}
	p := v.probs[v.cursor]
	v.cursor++
	return p
}

type fakeTranscriber struct {
	text string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, samples []int16) (*cognition.STTResult, error) {
	return &cognition.STTResult{Text: f.text, LatencyMs: 1}, nil
}

type fakeLLM struct {
	reply string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []cognition.Message, model string, onToken cognition.TokenCallback) (*cognition.LLMResult, error) {
	if onToken != nil {
		onToken(f.reply + ". ")
	}
	return &cognition.LLMResult{Text: f.reply + ".", LatencyMs: 1}, nil
}

type fakeSynthesizer struct {
	sampleRate int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, engine string) (*cognition.TTSResult, error) {
	samples := make([]int16, f.sampleRate/50*len(text)) // 20ms of silence per character of text
	return &cognition.TTSResult{Audio: audio.EncodeWAV(samples, f.sampleRate), LatencyMs: 1}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	history []store.ConversationTurn
}

func (s *fakeStore) ReadHistory(ctx context.Context, userID string, limit int) ([]store.ConversationTurn, error) {
	return s.history, nil
}

func (s *fakeStore) AppendTurn(ctx context.Context, userID, role, content string, sentiment *float64, latencyMs *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, store.ConversationTurn{Role: role, Content: content})
	return nil
}

func (s *fakeStore) Close() error { return nil }

func newTestSession(t *testing.T, v vad.VAD, llmReply string) (*Session, *fakeAdapter) {
	t.Helper()
	adapter := newFakeAdapter()
	llm := cognition.NewAgentLLM("fake", 256)
	llm.RegisterRaw("fake", &fakeLLM{reply: llmReply}, "fake-model")

	cfg := Config{
		Profile:      audio.ProfileWeb,
		TurnConfig:   turn.DefaultConfig(),
		VAD:          v,
		STT:          &fakeTranscriber{text: "hello there"},
		LLM:          llm,
		TTS:          &fakeSynthesizer{sampleRate: audio.SampleRate(audio.ProfileWeb)},
		Store:        &fakeStore{},
		UserID:       "user-1",
		LLMEngine:    "fake",
		HistoryLimit: store.DefaultHistoryLimit,
	}
	return New(adapter, cfg), adapter
}

func silentFrame(t *testing.T) []byte {
	t.Helper()
	samples := make([]int16, audio.FrameSamples(audio.ProfileWeb))
	wire, err := audio.Encode(samples, audio.ProfileWeb)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return wire
}

func TestEndOfSpeechRunsCognitionJobAndReturnsToListening(t *testing.T) {
	speechThenSilence := &scriptedVAD{probs: append(repeat(0.9, 3), repeat(0.0, 25)...)}
	sess, adapter := newTestSession(t, speechThenSilence, "hi")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.Run(ctx)
	}()

	frame := silentFrame(t)
	for range 28 {
		adapter.sendMedia(frame)
	}

	waitForState(t, adapter, string(turn.Receiving), 2*time.Second)
	waitForState(t, adapter, string(turn.Thinking), 2*time.Second)
	waitForState(t, adapter, string(turn.Speaking), 2*time.Second)
	waitForState(t, adapter, string(turn.Listening), 2*time.Second)

	adapter.Close()
	cancel()
	wg.Wait()
}

func TestBargeInClearsQueueBeforeStateMessage(t *testing.T) {
	// Drive straight through to SPEAKING, then re-trigger speech to barge in.
	script := &scriptedVAD{probs: append(append(repeat(0.9, 3), repeat(0.0, 25)...), repeat(0.9, 3)...)}
	sess, adapter := newTestSession(t, script, "a reasonably long reply that takes a couple of frames")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.Run(ctx)
	}()

	frame := silentFrame(t)
	for range 28 {
		adapter.sendMedia(frame)
	}
	waitForState(t, adapter, string(turn.Speaking), 2*time.Second)

	for range 3 {
		adapter.sendMedia(frame)
	}

	deadline := time.After(2 * time.Second)
	sawClear := false
	for {
		select {
		case m := <-adapter.out:
			if m.Event == transport.EventClear {
				sawClear = true
			}
			if m.Event == transport.EventState && m.State == string(turn.Receiving) {
				if !sawClear {
					t.Fatalf("observed RECEIVING state before clear event on barge-in")
				}
				adapter.Close()
				cancel()
				wg.Wait()
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for barge-in RECEIVING state")
		}
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
