package audio

import "testing"

func TestMulawRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 8000, -8000, 32767, -32768}
	encoded := EncodeMulaw(samples)
	decoded := DecodeMulaw(encoded)
	if len(decoded) != len(samples) {
		t.Fatalf("length mismatch: got %d want %d", len(decoded), len(samples))
	}
	for i, want := range samples {
		got := decoded[i]
		diff := int(got) - int(want)
		if diff < 0 {
			diff = -diff
		}
		// Mu-law is lossy; tolerate quantization error proportional to magnitude.
		tolerance := int(want)/32 + 32
		if tolerance < 0 {
			tolerance = -tolerance
		}
		if diff > tolerance {
			t.Errorf("sample %d: encode/decode drift too large: got %d want %d (diff %d, tolerance %d)", i, got, want, diff, tolerance)
		}
	}
}

// TestMulawByteRoundTrip exercises every one of the 256 possible mu-law
// byte codes: encoding the byte's own decoded sample must reproduce the
// original byte exactly, except for the two codes (0x7F and 0xFF) that
// both decode to the zero sample and therefore collapse onto the same
// encoded byte.
func TestMulawByteRoundTrip(t *testing.T) {
	zeroCodes := map[byte]bool{0x7F: true, 0xFF: true}
	for i := range 256 {
		b := byte(i)
		sample := mulawTable[b]
		got := encodeMulawSample(sample)
		if zeroCodes[b] {
			continue
		}
		if got != b {
			t.Errorf("byte %#02x: decode/encode round trip gave %#02x (sample %d)", b, got, sample)
		}
	}
}

func TestMulawSilenceIsExact(t *testing.T) {
	if DecodeMulaw(EncodeMulaw([]int16{0}))[0] != 0 {
		t.Fatalf("silence sample did not round-trip to exact zero")
	}
}

func TestPCM16LERoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 12345, -12345, 32767, -32768}
	encoded := EncodePCM16LE(samples)
	decoded, err := DecodePCM16LE(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range samples {
		if decoded[i] != want {
			t.Errorf("sample %d: got %d want %d", i, decoded[i], want)
		}
	}
}

func TestPCM16LEOddLength(t *testing.T) {
	_, err := DecodePCM16LE([]byte{0x01})
	if err == nil {
		t.Fatal("expected error for odd-length PCM buffer")
	}
}

func TestDecodeEncodeByProfile(t *testing.T) {
	for _, p := range []Profile{ProfileTelephony, ProfileWeb} {
		n := FrameSamples(p)
		samples := make([]int16, n)
		for i := range samples {
			samples[i] = int16(i % 1000)
		}
		wire, err := Encode(samples, p)
		if err != nil {
			t.Fatalf("profile %s: encode error: %v", p, err)
		}
		if len(wire) != FrameBytes(p) {
			t.Errorf("profile %s: wire length = %d, want %d", p, len(wire), FrameBytes(p))
		}
		back, err := Decode(wire, p)
		if err != nil {
			t.Fatalf("profile %s: decode error: %v", p, err)
		}
		if len(back) != n {
			t.Errorf("profile %s: decoded sample count = %d, want %d", p, len(back), n)
		}
	}
}

func TestUnknownProfileErrors(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}, Profile("bogus")); err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if _, err := Encode([]int16{1, 2, 3}, Profile("bogus")); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}
