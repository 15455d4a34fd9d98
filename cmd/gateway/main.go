package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duplexline/turnbridge/internal/auth"
	"github.com/duplexline/turnbridge/internal/cognition"
	"github.com/duplexline/turnbridge/internal/orchestrator"
	"github.com/duplexline/turnbridge/internal/store"
	"github.com/duplexline/turnbridge/internal/trace"
	"github.com/duplexline/turnbridge/internal/vad"
)

// tuning holds call-handling knobs loaded from gateway.json. These are
// values that may eventually move to a database; for now a JSON file keeps
// them out of env vars, which are reserved for deployment topology.
type tuning struct {
	LLMSystemPrompt  string  `json:"llm_system_prompt"`
	LLMMaxTokens     int     `json:"llm_max_tokens"`
	LLMPoolSize      int     `json:"llm_pool_size"`
	STTPoolSize      int     `json:"stt_pool_size"`
	TTSPoolSize      int     `json:"tts_pool_size"`
	VADSpeechFrames  int     `json:"vad_speech_frames"`
	VADSilenceFrames int     `json:"vad_silence_frames"`
	VADSpeechGate    float64 `json:"vad_speech_gate"`
	HistoryLimit     int     `json:"history_limit"`
	OpenAIURL        string  `json:"openai_url"`
	OpenAIModel      string  `json:"openai_model"`
	AnthropicURL     string  `json:"anthropic_url"`
	AnthropicModel   string  `json:"anthropic_model"`
}

// defaultTuning returns the values baked into the sample gateway.json.
func defaultTuning() tuning {
	return tuning{
		LLMSystemPrompt:  "You are a helpful call center agent. Keep responses concise and conversational.",
		LLMMaxTokens:     2048,
		LLMPoolSize:      50,
		STTPoolSize:      50,
		TTSPoolSize:      50,
		VADSpeechFrames:  3,
		VADSilenceFrames: 25,
		VADSpeechGate:    0.6,
		HistoryLimit:     20,
		OpenAIURL:        "https://api.openai.com",
		OpenAIModel:      "gpt-4.1-nano",
		AnthropicURL:     "https://api.anthropic.com",
		AnthropicModel:   "claude-sonnet-4-5",
	}
}

// loadTuning reads path if present, otherwise returns defaults.
func loadTuning(path string) tuning {
	t := defaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info("no tuning file, using defaults", "path", path)
		return t
	}
	if err = json.Unmarshal(data, &t); err != nil {
		slog.Warn("bad tuning file, using defaults", "path", path, "error", err)
		return defaultTuning()
	}
	slog.Info("loaded tuning", "path", path)
	return t
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on process environment")
	}

	t := loadTuning(envStr("GATEWAY_CONFIG_FILE", "gateway.json"))
	cfg := loadConfig(t)

	registry, err := orchestrator.LoadRegistry(cfg.servicesFile)
	if err != nil {
		slog.Error("load services registry", "error", err)
		os.Exit(1)
	}
	svcMgr := orchestrator.NewHTTPControlManager(registry)

	sttRouter := buildSTTRouter(cfg, t)
	llmRouter := buildLLMRouter(cfg, t)
	ttsRouter := buildTTSRouter(cfg, t)

	vadFactory := buildVADFactory(cfg)

	convStore, err := openConversationStore(cfg)
	if err != nil {
		slog.Error("open conversation store", "error", err)
		os.Exit(1)
	}
	defer convStore.Close()

	var traceStore *trace.Store
	if cfg.tracePostgresURL != "" {
		traceStore, err = trace.Open(cfg.tracePostgresURL)
		if err != nil {
			slog.Error("trace store open failed", "error", err)
		} else {
			slog.Info("tracing enabled", "postgres", cfg.tracePostgresURL)
		}
	}

	authenticator := auth.NewStaticAuthenticator(cfg.anonymousUserID)

	deps := gatewayDeps{
		cfg:           cfg,
		tuning:        t,
		svcMgr:        svcMgr,
		sttRouter:     sttRouter,
		llmRouter:     llmRouter,
		ttsRouter:     ttsRouter,
		vadFactory:    vadFactory,
		convStore:     convStore,
		traceStore:    traceStore,
		authenticator: authenticator,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv, svcMgr, traceStore)

	slog.Info("gateway starting", "addr", addr, "profile", cfg.profile)

	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}

// awaitShutdown blocks until SIGINT/SIGTERM, then gracefully stops managed
// services and closes the trace store before the HTTP server drains.
func awaitShutdown(srv *http.Server, svcMgr *orchestrator.HTTPControlManager, traceStore *trace.Store) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("stopping managed services")
	stopRunningServices(ctx, svcMgr, "shutdown")

	if traceStore != nil {
		traceStore.Close()
	}

	srv.Shutdown(ctx)
}

func buildSTTRouter(cfg config, t tuning) *cognition.STTRouter {
	backends := map[string]cognition.Transcriber{}
	if cfg.whisperServerURL != "" {
		backends["whisper-server"] = cognition.NewSTTClient(cfg.whisperServerURL, t.STTPoolSize)
	}
	return cognition.NewSTTRouter(backends, "whisper-server")
}

func buildTTSRouter(cfg config, t tuning) *cognition.TTSRouter {
	backends := map[string]cognition.Synthesizer{
		"piper": cognition.NewTTSClient(cfg.piperURL, t.TTSPoolSize),
	}
	return cognition.NewTTSRouter(backends, "piper")
}

// buildLLMRouter wires every configured engine into an AgentLLM. Ollama
// always registers since it needs no API key and speaks the OpenAI chat
// format natively, so it goes through the agents SDK provider for full
// tool-use support. OpenAI also goes through the SDK, against the Responses
// API. Anthropic's Messages API isn't OpenAI-wire-compatible, so it's
// registered as a raw streaming client instead of forced through the SDK
// provider. A raw completions-style OpenAI client is registered alongside
// the chat engine for older completion-only models.
func buildLLMRouter(cfg config, t tuning) *cognition.AgentLLM {
	router := cognition.NewAgentLLM("ollama", t.LLMMaxTokens)
	router.Register("ollama", agents.NewOpenAIProvider(agents.OpenAIProviderParams{
		BaseURL:      param.NewOpt(cfg.ollamaURL + "/v1/"),
		APIKey:       param.NewOpt("ollama"),
		UseResponses: param.NewOpt(false),
	}), cfg.ollamaModel)

	if cfg.openaiAPIKey != "" {
		router.Register("openai", agents.NewOpenAIProvider(agents.OpenAIProviderParams{
			BaseURL:      param.NewOpt(cfg.openaiURL + "/v1/"),
			APIKey:       param.NewOpt(cfg.openaiAPIKey),
			UseResponses: param.NewOpt(true),
		}), cfg.openaiModel)
		router.RegisterRaw("openai-completions", cognition.NewOpenAICompletionsClient(
			cfg.openaiAPIKey, cfg.openaiURL, cfg.openaiModel, t.LLMMaxTokens, t.LLMPoolSize,
		), cfg.openaiModel)
	}
	if cfg.anthropicKey != "" {
		router.RegisterRaw("anthropic", cognition.NewAnthropicLLMClient(
			cfg.anthropicKey, cfg.anthropicURL, cfg.anthropicMdl, t.LLMMaxTokens, t.LLMPoolSize,
		), cfg.anthropicMdl)
	}
	return router
}

// buildVADFactory returns a constructor for a fresh VAD backend, since each
// session needs its own smoothing/window state and cannot share one
// instance across concurrent calls. It prefers the ONNX Silero model when
// both its shared library and weights are configured, falling back to the
// dependency-free energy detector otherwise so the gateway still runs
// without a model file.
func buildVADFactory(cfg config) func() vad.VAD {
	if cfg.onnxSharedLib != "" && cfg.onnxModelPath != "" {
		slog.Info("vad backend selected", "backend", "onnx-silero")
		return func() vad.VAD {
			m, err := vad.NewModelVAD(cfg.onnxSharedLib, cfg.onnxModelPath)
			if err != nil {
				slog.Warn("onnx vad init failed for session, falling back to energy vad", "error", err)
				return vad.NewEnergyVAD(vad.DefaultEnergyConfig())
			}
			return m
		}
	}
	slog.Info("vad backend selected", "backend", "energy")
	return func() vad.VAD {
		return vad.NewEnergyVAD(vad.DefaultEnergyConfig())
	}
}

func openConversationStore(cfg config) (store.ConversationStore, error) {
	if cfg.postgresURL != "" {
		s, err := store.OpenPostgres(cfg.postgresURL)
		if err != nil {
			return nil, err
		}
		slog.Info("conversation store", "backend", "postgres")
		return s, nil
	}
	s, err := store.OpenSQLite(cfg.sqlitePath)
	if err != nil {
		return nil, err
	}
	slog.Info("conversation store", "backend", "sqlite", "path", cfg.sqlitePath)
	return s, nil
}

func stopRunningServices(ctx context.Context, svcMgr *orchestrator.HTTPControlManager, label string) {
	svcs, _ := svcMgr.StatusAll(ctx)
	for _, svc := range svcs {
		if svc.Status == orchestrator.StatusStopped {
			continue
		}
		slog.Info(label+" stopping service", "name", svc.Name)
		if _, err := svcMgr.Stop(ctx, svc.Name); err != nil {
			slog.Warn(label+" stop", "name", svc.Name, "error", err)
		}
	}
}
