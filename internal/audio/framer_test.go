package audio

import "testing"

func TestFramerEmitsWholeFramesOnly(t *testing.T) {
	f := NewFramer(160)
	frames := f.Push(make([]int16, 100))
	if len(frames) != 0 {
		t.Fatalf("expected no frames from a partial push, got %d", len(frames))
	}
	if f.Pending() != 100 {
		t.Fatalf("expected 100 pending samples, got %d", f.Pending())
	}

	frames = f.Push(make([]int16, 250))
	// 100 + 250 = 350 samples -> two whole 160-sample frames, 30 left over.
	if len(frames) != 2 {
		t.Fatalf("expected 2 whole frames, got %d", len(frames))
	}
	if f.Pending() != 30 {
		t.Fatalf("expected 30 pending samples, got %d", f.Pending())
	}
}

func TestFramerFlushZeroPads(t *testing.T) {
	f := NewFramer(160)
	f.Push(make([]int16, 40))
	flushed := f.Flush()
	if len(flushed) != 160 {
		t.Fatalf("flushed frame length = %d, want 160", len(flushed))
	}
	for i := 40; i < 160; i++ {
		if flushed[i] != 0 {
			t.Fatalf("expected zero padding at index %d, got %d", i, flushed[i])
		}
	}
	if f.Pending() != 0 {
		t.Fatalf("expected framer reset after flush, got %d pending", f.Pending())
	}
}

func TestFramerFlushEmptyReturnsNil(t *testing.T) {
	f := NewFramer(160)
	if f.Flush() != nil {
		t.Fatal("expected nil flush from an empty framer")
	}
}
