package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/auth"
	"github.com/duplexline/turnbridge/internal/cognition"
	"github.com/duplexline/turnbridge/internal/orchestrator"
	"github.com/duplexline/turnbridge/internal/session"
	"github.com/duplexline/turnbridge/internal/store"
	"github.com/duplexline/turnbridge/internal/trace"
	"github.com/duplexline/turnbridge/internal/transport"
	"github.com/duplexline/turnbridge/internal/vad"
)

// defaultTraceSessionLimit is how many trace sessions are returned when the
// caller omits the ?limit= query parameter.
const defaultTraceSessionLimit = 20

// gatewayDeps bundles everything a request handler or the call endpoint
// needs, assembled once in main and shared read-only across connections.
type gatewayDeps struct {
	cfg    config
	tuning tuning

	svcMgr     *orchestrator.HTTPControlManager
	sttRouter  *cognition.STTRouter
	llmRouter  *cognition.AgentLLM
	ttsRouter  *cognition.TTSRouter
	vadFactory func() vad.VAD

	convStore     store.ConversationStore
	traceStore    *trace.Store
	authenticator auth.Authenticator
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d gatewayDeps) {
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/ws/call", d.handleCall)
	mux.HandleFunc("GET /api/services", d.handleServices)
	mux.HandleFunc("POST /api/services/{name}/start", d.handleServiceStart)
	mux.HandleFunc("POST /api/services/{name}/stop", d.handleServiceStop)
	mux.HandleFunc("GET /api/services/{name}/status", d.handleServiceStatus)
	registerTraceRoutes(mux, d.traceStore)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleCall upgrades to the full-duplex media channel, resolves caller
// identity from the bearer token, and hands off to a Session for the life
// of the connection. The HTTP handler returns as soon as Run returns.
func (d gatewayDeps) handleCall(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	userID, err := d.authenticator.Decode(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	profile := d.cfg.profile
	if p := r.URL.Query().Get("profile"); p == string(audio.ProfileTelephony) || p == string(audio.ProfileWeb) {
		profile = audio.Profile(p)
	}

	adapter, err := transport.Upgrade(w, r)
	if err != nil {
		slog.Warn("call upgrade failed", "error", err)
		return
	}
	defer adapter.Close()

	var tracer *trace.Tracer
	sessionID := uuid.NewString()
	if d.traceStore != nil {
		if err = d.traceStore.CreateSession(sessionID, userID); err != nil {
			slog.Warn("trace session create failed", "error", err)
		}
		tracer = trace.NewTracer(d.traceStore, sessionID)
	}

	cfg := session.Config{
		SessionID:    sessionID,
		Profile:      profile,
		TurnConfig:   d.cfg.turnConfig,
		VAD:          d.vadFactory(),
		STT:          routedTranscriber{router: d.sttRouter, engine: queryOr(r, "stt_engine", "whisper-server")},
		LLM:          d.llmRouter,
		TTS:          d.ttsRouter,
		Store:        d.convStore,
		Tracer:       tracer,
		UserID:       userID,
		SystemPrompt: d.tuning.LLMSystemPrompt,
		LLMModel:     r.URL.Query().Get("model"),
		LLMEngine:    queryOr(r, "llm_engine", "ollama"),
		STTEngine:    queryOr(r, "stt_engine", "whisper-server"),
		TTSEngine:    queryOr(r, "tts_engine", "piper"),
		HistoryLimit: d.tuning.HistoryLimit,
	}

	sess := session.New(adapter, cfg)
	sess.Run(r.Context())
	if tracer != nil {
		tracer.Close()
	}
	if d.traceStore != nil {
		if err = d.traceStore.EndSession(sessionID); err != nil {
			slog.Warn("trace session end failed", "error", err)
		}
	}
}

// routedTranscriber pins an STTRouter to one engine so it satisfies the
// single-backend cognition.Transcriber a Session consumes.
type routedTranscriber struct {
	router *cognition.STTRouter
	engine string
}

func (t routedTranscriber) Transcribe(ctx context.Context, samples []int16) (*cognition.STTResult, error) {
	return t.router.Transcribe(ctx, samples, t.engine)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func queryOr(r *http.Request, key, fallback string) string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	return v
}

func (d gatewayDeps) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := d.svcMgr.StatusAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(services)
}

func (d gatewayDeps) handleServiceStart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	slog.Info("service start requested", "name", name)
	if _, err := d.svcMgr.Start(r.Context(), name); err != nil {
		slog.Error("service start failed", "name", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("service started", "name", name)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "starting"})
}

func (d gatewayDeps) handleServiceStop(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	slog.Info("service stop requested", "name", name)
	if _, err := d.svcMgr.Stop(r.Context(), name); err != nil {
		slog.Error("service stop failed", "name", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("service stopped", "name", name)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "stopped"})
}

func (d gatewayDeps) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, err := d.svcMgr.Status(r.Context(), name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func registerTraceRoutes(mux *http.ServeMux, tstore *trace.Store) {
	mux.HandleFunc("GET /api/traces/sessions", func(w http.ResponseWriter, r *http.Request) {
		if tstore == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceSessionLimit)
		offset := queryInt(r, "offset", 0)
		sessions, total, err := tstore.ListSessions(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"sessions": sessions, "total": total})
	})

	mux.HandleFunc("GET /api/traces/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if tstore == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		sess, runs, err := tstore.GetSession(r.PathValue("id"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"session": sess, "runs": runs})
	})

	mux.HandleFunc("GET /api/traces/sessions/{id}/runs/{runId}", func(w http.ResponseWriter, r *http.Request) {
		if tstore == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		run, spans, err := tstore.GetRun(r.PathValue("id"), r.PathValue("runId"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"run": run, "spans": spans})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
