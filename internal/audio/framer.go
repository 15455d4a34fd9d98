package audio

// Framer accumulates PCM samples and emits fixed-size 20ms frames. A
// producer supplying fewer than one frame's worth of samples is buffered
// until a full frame is formed; on Flush, any short residual is zero-padded
// to a whole frame.
type Framer struct {
	frameLen int
	buf      []int16
}

// NewFramer creates a Framer that emits frames of frameLen samples
// (FrameSamples(profile)).
func NewFramer(frameLen int) *Framer {
	return &Framer{frameLen: frameLen}
}

// Push appends samples to the framer's internal buffer and returns any
// whole frames that can now be emitted. The framer never emits a partial
// frame from Push.
func (f *Framer) Push(samples []int16) [][]int16 {
	f.buf = append(f.buf, samples...)
	var frames [][]int16
	for len(f.buf) >= f.frameLen {
		frame := make([]int16, f.frameLen)
		copy(frame, f.buf[:f.frameLen])
		frames = append(frames, frame)
		f.buf = f.buf[f.frameLen:]
	}
	return frames
}

// Flush zero-pads any buffered residual to a full frame and returns it, or
// nil if nothing is buffered. The framer is reset afterward.
func (f *Framer) Flush() []int16 {
	if len(f.buf) == 0 {
		return nil
	}
	frame := make([]int16, f.frameLen)
	copy(frame, f.buf)
	f.buf = nil
	return frame
}

// Pending reports the number of samples currently buffered but not yet a
// whole frame.
func (f *Framer) Pending() int {
	return len(f.buf)
}
