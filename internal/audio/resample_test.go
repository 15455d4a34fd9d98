package audio

import "testing"

func TestResamplePassthroughSameRate(t *testing.T) {
	r := NewResampler(8000, 8000)
	in := []int16{1, 2, 3, 4}
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("expected passthrough length %d, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("index %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestResampleDownsampleHalvesLength(t *testing.T) {
	r := NewResampler(16000, 8000)
	in := make([]int16, 320)
	for i := range in {
		in[i] = int16(i)
	}
	out := r.Process(in)
	// 16kHz -> 8kHz should roughly halve sample count.
	if out == nil || len(out) < 150 || len(out) > 170 {
		t.Fatalf("expected ~160 output samples, got %d", len(out))
	}
}

func TestResampleNoClickAcrossChunkBoundary(t *testing.T) {
	r := NewResampler(16000, 8000)
	chunk1 := make([]int16, 320)
	chunk2 := make([]int16, 320)
	for i := range chunk1 {
		chunk1[i] = 1000
		chunk2[i] = 1000
	}
	out1 := r.Process(chunk1)
	out2 := r.Process(chunk2)
	if len(out1) == 0 || len(out2) == 0 {
		t.Fatal("expected non-empty output from both chunks")
	}
	// A constant-value input resampled across a chunk boundary should stay
	// constant; no interpolation artifact at the seam.
	last := out1[len(out1)-1]
	first := out2[0]
	if last != 1000 || first != 1000 {
		t.Errorf("boundary discontinuity: chunk1 last = %d, chunk2 first = %d", last, first)
	}
}

func TestResampleEmptyInput(t *testing.T) {
	r := NewResampler(16000, 8000)
	if out := r.Process(nil); out != nil {
		t.Fatalf("expected nil output for empty input, got %v", out)
	}
}
