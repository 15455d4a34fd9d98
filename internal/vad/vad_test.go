package vad

import "testing"

func TestEnergyVADSilenceIsZero(t *testing.T) {
	v := NewEnergyVAD(DefaultEnergyConfig())
	p := v.Process(make([]int16, 160))
	if p != 0 {
		t.Fatalf("expected 0 probability for silence, got %v", p)
	}
}

func TestEnergyVADLoudFrameSaturates(t *testing.T) {
	v := NewEnergyVAD(DefaultEnergyConfig())
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 32000
	}
	var last float64
	for range 20 {
		last = v.Process(samples)
	}
	if last < 0.99 {
		t.Fatalf("expected probability to converge near 1 for sustained loud input, got %v", last)
	}
}

func TestEnergyVADSmoothingIsGradual(t *testing.T) {
	v := NewEnergyVAD(DefaultEnergyConfig())
	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 32000
	}
	first := v.Process(loud)
	if first <= 0 || first >= 1 {
		t.Fatalf("expected first response to be partial due to smoothing, got %v", first)
	}
}

func TestEnergyVADEmptyFrameIsSilent(t *testing.T) {
	v := NewEnergyVAD(DefaultEnergyConfig())
	if p := v.Process(nil); p != 0 {
		t.Fatalf("expected 0 for empty frame, got %v", p)
	}
}

func TestEnergyVADResetClearsSmoothing(t *testing.T) {
	v := NewEnergyVAD(DefaultEnergyConfig())
	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 32000
	}
	v.Process(loud)
	v.Reset()
	if v.prev != 0 {
		t.Fatalf("expected smoothing state cleared after reset, got %v", v.prev)
	}
}

func TestNewModelVADRequiresModelPath(t *testing.T) {
	if _, err := NewModelVAD("", ""); err == nil {
		t.Fatal("expected error when no model path is configured")
	}
}
