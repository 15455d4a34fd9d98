package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/duplexline/turnbridge/internal/metrics"
	"github.com/duplexline/turnbridge/internal/transport"
)

// runEgress is T_egress, the sole writer of media frames to the peer. It
// paces output to one frame per frameDuration regardless of how quickly the
// cognition job fills the queue, sleeping off whatever time sending the
// previous frame already consumed so jitter in the write path doesn't
// accumulate into drift. Frames arrive already wire-encoded (mu-law or
// PCM16LE, per profile); egress only frames and paces them.
func (s *Session) runEgress(ctx context.Context) {
	var last time.Time
	for {
		ch := s.outbound.Pop()
		select {
		case <-ctx.Done():
			return
		case <-time.After(frameDuration):
			// Re-read the queue's channel: DrainAndCancel may have swapped it.
			continue
		case wire, ok := <-ch:
			if !ok {
				return
			}
			if ch != s.outbound.Pop() {
				// Pushed into a channel DrainAndCancel has since abandoned.
				continue
			}
			now := time.Now()
			if !last.IsZero() {
				metrics.OutboundFrameInterval.Observe(now.Sub(last).Seconds())
			}
			last = now

			metrics.OutboundQueueDepth.Set(float64(s.outbound.Depth()))

			if err := s.adapter.WriteMessage(transport.EncodeFrame(wire)); err != nil {
				slog.Warn("egress terminating on transport error", "session_id", s.id, "error", err)
				return
			}

			elapsed := time.Since(now)
			if remaining := frameDuration - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}
