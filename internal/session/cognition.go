package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/cognition"
	"github.com/duplexline/turnbridge/internal/metrics"
	"github.com/duplexline/turnbridge/internal/prompts"
)

// cognitionJob is the handle the ingest loop holds for the single in-flight
// CognitionJob, per the rule that at most one runs per session at a time.
// cancel is cooperative: it flips a flag the job checks before every
// OutboundQueue enqueue and after every external call; it never blocks and
// never waits for the job to return.
type cognitionJob struct {
	cancelled atomic.Bool
	done      chan struct{}
}

func (j *cognitionJob) cancel() {
	j.cancelled.Store(true)
}

func (j *cognitionJob) isCancelled() bool {
	return j.cancelled.Load()
}

// cancelCurrentJob cooperatively cancels whatever CognitionJob is running,
// if any. Safe to call when there is none.
func (s *Session) cancelCurrentJob() {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job != nil {
		job.cancel()
	}
}

// startCognitionJob launches T_cognition for one completed utterance. The
// utterance is already a private snapshot; the job owns it exclusively.
func (s *Session) startCognitionJob(ctx context.Context, utterance []int16) {
	job := &cognitionJob{done: make(chan struct{})}
	s.mu.Lock()
	s.job = job
	s.mu.Unlock()

	go func() {
		defer close(job.done)
		s.runCognitionJob(ctx, job, utterance)
	}()
}

// runCognitionJob is T_cognition: STT, then LLM with conversation history,
// then TTS streamed into the outbound queue frame by frame. Any stage
// failure returns the session to LISTENING. An STT failure emits no audio;
// an LLM or TTS failure after earlier sentences were queued does not
// withdraw those frames, which still play out after the LISTENING event.
func (s *Session) runCognitionJob(ctx context.Context, job *cognitionJob, utterance []int16) {
	start := time.Now()
	runID := s.cfg.Tracer.StartRun()

	text, err := s.transcribe(ctx, utterance)
	s.cfg.Tracer.RecordSpan(runID, "stt", start, time.Since(start).Seconds()*1000, "", text, spanStatus(err), errString(err))
	if err != nil {
		s.cfg.Tracer.EndRun(runID, time.Since(start).Seconds()*1000, "", "", "error")
		s.failTurn("stt", err)
		return
	}
	if job.isCancelled() {
		s.cfg.Tracer.EndRun(runID, time.Since(start).Seconds()*1000, text, "", "cancelled")
		return
	}
	s.emitTranscript("user", text)

	llmStart := time.Now()
	reply, err := s.converseAndSpeak(ctx, job, text, func(full string) {
		s.emitTranscript("ai", full)
		metrics.E2EDuration.Observe(time.Since(start).Seconds())
	})
	s.cfg.Tracer.RecordSpan(runID, "llm+tts", llmStart, time.Since(llmStart).Seconds()*1000, text, reply, spanStatus(err), errString(err))
	if err != nil {
		s.cfg.Tracer.EndRun(runID, time.Since(start).Seconds()*1000, text, "", "error")
		s.failTurn("llm", err)
		return
	}
	if reply == "" || job.isCancelled() {
		s.cfg.Tracer.EndRun(runID, time.Since(start).Seconds()*1000, text, "", "cancelled")
		return
	}

	s.cfg.Tracer.EndRun(runID, time.Since(start).Seconds()*1000, text, reply, "ok")
	s.persistTurn(ctx, "user", text, nil)
	sentiment := cognition.Score(reply)
	latencyMs := int(time.Since(start).Milliseconds())
	s.persistTurn(ctx, "assistant", reply, &persistedTurn{sentiment: sentiment, latencyMs: latencyMs})
}

func spanStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Session) transcribe(ctx context.Context, utterance []int16) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := s.cfg.STT.Transcribe(stepCtx, utterance)
	if err != nil {
		metrics.Errors.WithLabelValues("stt", "external").Inc()
		return "", &ExternalServiceError{Stage: "stt", Err: err}
	}
	metrics.StageDuration.WithLabelValues("stt").Observe(result.LatencyMs / 1000)
	return result.Text, nil
}

// converseAndSpeak runs the LLM and TTS stages as a pipeline: tokens stream
// out of the LLM into a SentenceBuffer, and each completed sentence is
// synthesized and enqueued as soon as it is ready rather than waiting for
// the whole reply, so the caller starts hearing a response well before the
// model finishes generating it. onFullText fires once as soon as the
// complete reply text is known, ahead of the last sentence's audio landing
// in the outbound queue.
func (s *Session) converseAndSpeak(ctx context.Context, job *cognitionJob, userText string, onFullText func(string)) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	history, err := s.cfg.Store.ReadHistory(stepCtx, s.cfg.UserID, s.cfg.HistoryLimit)
	if err != nil {
		slog.Warn("conversation history unavailable, continuing without it", "session_id", s.id, "error", err)
	}

	messages := make([]cognition.Message, 0, len(history)+2)
	messages = append(messages, cognition.Message{Role: "system", Content: prompts.ForSession(s.cfg.SystemPrompt)})
	for _, h := range history {
		messages = append(messages, cognition.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, cognition.Message{Role: "user", Content: userText})

	sentences := make(chan string, 8)
	stopSentences := make(chan struct{})
	ttsDone := make(chan error, 1)
	go func() {
		err := s.speak(ctx, job, sentences)
		close(stopSentences)
		ttsDone <- err
	}()

	// If speak returns early (error or cancellation) while the LLM is still
	// streaming, stopSentences unblocks any token still waiting to enqueue a
	// completed sentence, so onToken never deadlocks against a drained reader.
	var buf cognition.SentenceBuffer
	onToken := func(token string) {
		complete := buf.Add(token)
		if complete == "" {
			return
		}
		select {
		case sentences <- complete:
		case <-stopSentences:
		}
	}

	result, err := s.cfg.LLM.Chat(stepCtx, messages, s.cfg.LLMModel, s.cfg.LLMEngine, onToken)
	if err != nil {
		job.cancel()
		close(sentences)
		<-ttsDone
		metrics.Errors.WithLabelValues("llm", "external").Inc()
		return "", &ExternalServiceError{Stage: "llm", Err: err}
	}
	if tail := buf.Flush(); tail != "" {
		select {
		case sentences <- tail:
		case <-stopSentences:
		}
	}
	close(sentences)
	metrics.StageDuration.WithLabelValues("llm").Observe(result.LatencyMs / 1000)

	if onFullText != nil && !job.isCancelled() {
		onFullText(result.Text)
	}

	if ttsErr := <-ttsDone; ttsErr != nil {
		return result.Text, ttsErr
	}
	return result.Text, nil
}

type persistedTurn struct {
	sentiment float64
	latencyMs int
}

func (s *Session) persistTurn(ctx context.Context, role, content string, p *persistedTurn) {
	if s.cfg.Store == nil {
		return
	}
	var sentiment *float64
	var latencyMs *int
	if p != nil {
		sentiment = &p.sentiment
		latencyMs = &p.latencyMs
	}
	if err := s.cfg.Store.AppendTurn(ctx, s.cfg.UserID, role, content, sentiment, latencyMs); err != nil {
		slog.Warn("failed to persist conversation turn", "session_id", s.id, "role", role, "error", err)
	}
}

// speak consumes completed sentences as they arrive from the LLM stream,
// synthesizing and framing each in turn and pushing the result onto the
// outbound queue, checking cancellation before every enqueue. It transitions
// the turn machine to SPEAKING on the first frame of the first sentence and
// back to LISTENING once the channel is closed, every frame has been queued
// without interruption, and the egress loop has taken the last queued frame.
func (s *Session) speak(ctx context.Context, job *cognitionJob, sentences <-chan string) error {
	framer := audio.NewFramer(audio.FrameSamples(s.cfg.Profile))
	targetRate := audio.SampleRate(s.cfg.Profile)
	spoke := false

	for sentence := range sentences {
		if job.isCancelled() {
			continue
		}
		frames, err := s.synthesizeFrames(ctx, sentence, targetRate, framer)
		if err != nil {
			return err
		}
		for _, frame := range frames {
			if job.isCancelled() {
				break
			}
			if !spoke {
				if err = s.beginSpeaking(); err != nil {
					return &InternalInvariantError{Err: err}
				}
				s.emitState(s.currentState())
				spoke = true
			}
			wire, err := audio.Encode(frame, s.cfg.Profile)
			if err != nil {
				return &ExternalServiceError{Stage: "tts", Err: err}
			}
			s.outbound.Push(wire)
		}
	}

	if job.isCancelled() {
		return nil
	}
	if tail := framer.Flush(); tail != nil && !job.isCancelled() {
		wire, err := audio.Encode(tail, s.cfg.Profile)
		if err != nil {
			return &ExternalServiceError{Stage: "tts", Err: err}
		}
		s.outbound.Push(wire)
	}
	if spoke {
		for s.outbound.Depth() > 0 && !job.isCancelled() && ctx.Err() == nil {
			time.Sleep(frameDuration)
		}
		if job.isCancelled() || ctx.Err() != nil {
			return nil
		}
		if err := s.endSpeaking(); err != nil {
			return &InternalInvariantError{Err: err}
		}
		s.emitState(s.currentState())
	}
	return nil
}

func (s *Session) synthesizeFrames(ctx context.Context, sentence string, targetRate int, framer *audio.Framer) ([][]int16, error) {
	stepCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	result, err := s.cfg.TTS.Synthesize(stepCtx, sentence, s.cfg.TTSEngine)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "external").Inc()
		return nil, &ExternalServiceError{Stage: "tts", Err: err}
	}
	metrics.StageDuration.WithLabelValues("tts").Observe(result.LatencyMs / 1000)

	samples, sourceRate, err := audio.DecodeWAV(result.Audio)
	if err != nil {
		return nil, &ExternalServiceError{Stage: "tts", Err: err}
	}
	if sourceRate != targetRate {
		samples = audio.NewResampler(sourceRate, targetRate).Process(samples)
	}
	return framer.Push(samples), nil
}

// failTurn logs the failure, returns the turn machine to LISTENING, and
// tells the peer no reply is coming for this turn.
func (s *Session) failTurn(stage string, err error) {
	slog.Error("turn failed", "session_id", s.id, "stage", stage, "error", err)
	s.returnToListening()
	s.emitState(s.currentState())
}
