package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ModelSampleRate is the fixed rate ModelVAD requires; callers must resample
// to this rate before calling Process.
const ModelSampleRate = 16000

// modelWindowSamples is the Silero VAD v5 inference window: 512 samples at
// 16 kHz (32 ms). Frames shorter than this are buffered until a full window
// accumulates; Process returns the most recent inference result available.
const modelWindowSamples = 512

// modelStateSize is the hidden state dimension per layer of the recurrent model.
const modelStateSize = 128

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ModelVAD runs a pretrained ONNX speech-detection model (Silero-style) via
// onnxruntime_go. No smoothing is applied — the model is assumed calibrated.
// It degrades to a clear construction-time error rather than a panic when
// the runtime or model cannot be loaded; callers should fall back to
// EnergyVAD in that case.
type ModelVAD struct {
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32]
	stateTensor  *ort.Tensor[float32]
	srTensor     *ort.Tensor[int64]
	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]

	pcmBuf   []float32
	lastProb float64
}

// NewModelVAD loads the ONNX model at modelPath and allocates inference
// tensors. sharedLibPath is the path to the onnxruntime shared library.
func NewModelVAD(sharedLibPath, modelPath string) (*ModelVAD, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("vad: no model path configured")
	}

	ortInitOnce.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("vad: initialize onnxruntime: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, modelWindowSamples))
	if err != nil {
		return nil, fmt.Errorf("vad: create input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, modelStateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("vad: create state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(ModelSampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("vad: create sample-rate tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("vad: create output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, modelStateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("vad: create next-state tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("vad: create session: %w", err)
	}

	return &ModelVAD{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
		pcmBuf:       make([]float32, 0, modelWindowSamples*2),
	}, nil
}

// Process accepts signed 16-bit PCM samples at ModelSampleRate, buffers them
// into inference windows, and returns the most recently computed speech
// probability. If not enough samples have accumulated for a new window yet,
// it returns the previous value.
func (m *ModelVAD) Process(samples []int16) float64 {
	m.pcmBuf = append(m.pcmBuf, pcmToFloat32(samples)...)

	for len(m.pcmBuf) >= modelWindowSamples {
		prob, err := m.infer(m.pcmBuf[:modelWindowSamples])
		m.pcmBuf = m.pcmBuf[modelWindowSamples:]
		if err != nil {
			// Fail-silent per the energy-VAD contract: a model hiccup must
			// not spuriously trigger a turn transition.
			return 0
		}
		m.lastProb = prob
	}
	return m.lastProb
}

func (m *ModelVAD) infer(window []float32) (float64, error) {
	copy(m.inputTensor.GetData(), window)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("vad: inference: %w", err)
	}
	prob := m.outputTensor.GetData()[0]
	copy(m.stateTensor.GetData(), m.stateNTensor.GetData())
	return float64(prob), nil
}

// Close releases the ONNX Runtime session and tensors. Safe to call once.
func (m *ModelVAD) Close() error {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.stateTensor != nil {
		m.stateTensor.Destroy()
	}
	if m.srTensor != nil {
		m.srTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
	if m.stateNTensor != nil {
		m.stateNTensor.Destroy()
	}
	return nil
}

func pcmToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
