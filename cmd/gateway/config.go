package main

import (
	"os"
	"strconv"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/turn"
)

// config holds deployment-level settings read from the environment. Values
// that describe call-handling behavior rather than where things live belong
// in gateway.json instead; see tuning in main.go.
type config struct {
	port            string
	profile         audio.Profile
	anonymousUserID string

	postgresURL string
	sqlitePath  string

	tracePostgresURL string

	ollamaURL    string
	ollamaModel  string
	openaiAPIKey string
	openaiURL    string
	openaiModel  string
	anthropicKey string
	anthropicURL string
	anthropicMdl string

	whisperServerURL string
	piperURL         string

	onnxSharedLib string
	onnxModelPath string

	servicesFile string

	turnConfig turn.Config
}

func loadConfig(t tuning) config {
	return config{
		port:            envStr("GATEWAY_PORT", "8000"),
		profile:         audio.Profile(envStr("WIRE_PROFILE", string(audio.ProfileTelephony))),
		anonymousUserID: envStr("ANONYMOUS_USER_ID", "anonymous"),

		postgresURL: envStr("POSTGRES_URL", ""),
		sqlitePath:  envStr("SQLITE_PATH", "turnbridge.db"),

		tracePostgresURL: envStr("TRACE_POSTGRES_URL", envStr("POSTGRES_URL", "")),

		ollamaURL:    envStr("OLLAMA_URL", "http://localhost:11434"),
		ollamaModel:  envStr("OLLAMA_MODEL", "llama3.2:3b"),
		openaiAPIKey: envStr("OPENAI_API_KEY", ""),
		openaiURL:    envStr("OPENAI_URL", t.OpenAIURL),
		openaiModel:  envStr("OPENAI_MODEL", t.OpenAIModel),
		anthropicKey: envStr("ANTHROPIC_API_KEY", ""),
		anthropicURL: envStr("ANTHROPIC_URL", t.AnthropicURL),
		anthropicMdl: envStr("ANTHROPIC_MODEL", t.AnthropicModel),

		whisperServerURL: envStr("WHISPER_SERVER_URL", ""),
		piperURL:         envStr("PIPER_URL", "http://localhost:5100"),

		onnxSharedLib: envStr("ONNX_SHARED_LIB", ""),
		onnxModelPath: envStr("SILERO_VAD_MODEL", ""),

		servicesFile: envStr("SERVICES_FILE", "services.yaml"),

		turnConfig: turn.Config{
			SpeechThreshold:  envInt("VAD_SPEECH_FRAMES", t.VADSpeechFrames),
			SilenceThreshold: envInt("VAD_SILENCE_FRAMES", t.VADSilenceFrames),
			SpeechGate:       envFloat("VAD_SPEECH_GATE", t.VADSpeechGate),
		},
	}
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}
