package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/metrics"
	"github.com/duplexline/turnbridge/internal/transport"
	"github.com/duplexline/turnbridge/internal/turn"
)

// runIngest is T_ingest: it reads one transport message at a time, decodes
// media frames, drives VAD and the turn machine, and reacts to whatever
// transition the frame produced. It is the only goroutine that mutates the
// utterance buffer and the only one that launches a CognitionJob.
//
// Ordering guarantee: any side-effect message (clear, state) this loop emits
// for a given frame is written before that frame's decoded audio is appended
// to the utterance buffer or handed to a new job, so a peer never observes
// media belonging to a state it hasn't been told about yet.
func (s *Session) runIngest(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := s.adapter.ReadMessage()
		if err != nil {
			var fde *transport.FrameDecodeError
			if errors.As(err, &fde) {
				slog.Warn("dropping malformed wire message", "session_id", s.id, "error", fde)
				continue
			}
			if !errors.Is(err, context.Canceled) {
				slog.Info("ingest terminating on transport error", "session_id", s.id, "error", err)
			}
			return
		}

		if msg.Event != transport.EventMedia {
			continue
		}

		if err = s.handleMediaMessage(ctx, msg); err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				slog.Warn("dropping malformed media frame", "session_id", s.id, "error", de)
				continue
			}
			slog.Error("ingest frame handling failed", "session_id", s.id, "error", err)
			return
		}
	}
}

func (s *Session) handleMediaMessage(ctx context.Context, msg transport.Message) error {
	wire, err := transport.DecodeFrame(msg)
	if err != nil {
		return &DecodeError{Err: err}
	}
	samples, err := audio.Decode(wire, s.cfg.Profile)
	if err != nil {
		return &DecodeError{Err: err}
	}

	metrics.AudioChunks.Inc()

	p := s.cfg.VAD.Process(samples)
	state, event := s.processFrame(p)

	switch event {
	case turn.BeginUtterance:
		s.emitState(state)
		s.appendUtterance(samples)
	case turn.BargeIn:
		metrics.BargeIns.Inc()
		s.cancelCurrentJob()
		s.outbound.DrainAndCancel()
		s.emitClear()
		s.emitState(state)
	case turn.EndOfSpeech:
		s.emitState(state)
		utterance := s.snapshotAndClearUtterance()
		metrics.SpeechSegments.Inc()
		s.startCognitionJob(ctx, utterance)
	case turn.RestartUtterance:
		s.cancelCurrentJob()
		s.emitState(state)
		s.appendUtterance(samples)
	case turn.NoEvent:
		if state == turn.Receiving {
			s.appendUtterance(samples)
		}
	}
	return nil
}
