package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"simplegen/internal/genconfig"
	"simplegen/internal/generator"
	"simplegen/internal/service"
	"simplegen/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	NewConversation(ctx context.Context, modelID, system string) (string, *generator.Conversation, error)
	Say(ctx context.Context, modelID string, conv *generator.Conversation, message string, opts ...genconfig.Option) (string, error)
}

func NewMux(svc Service) http.Handler {
	sessions := newSessionStore(sessionTTL)
	// Stop the session janitor with the server: SetBaseContext installs a
	// context canceled on shutdown before the mux is built.
	go func(ctx context.Context) {
		<-ctx.Done()
		sessions.stop()
	}(serverBaseCtx)

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.ListModels()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.GenerateRequest](w, r)
		if !ok {
			return
		}
		if len(req.Texts) == 0 {
			writeJSONError(w, http.StatusBadRequest, "texts is required")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Str("path", r.URL.Path).Str("model", req.Model).Int("texts", len(req.Texts))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("generate start")
		}

		// Join server base context with request context so shutdown cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if generateTimeout > 0 {
			var tcancel context.CancelFunc
			joinedCtx, tcancel = context.WithTimeout(joinedCtx, generateTimeout)
			defer tcancel()
		}

		resp, err := svc.Generate(joinedCtx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := writeServiceError(w, err)
			logRequestEnd(r, lvl, "generate end", status, start, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
		logRequestEnd(r, lvl, "generate end", http.StatusOK, start, nil)
	})

	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.ChatRequest](w, r)
		if !ok {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSONError(w, http.StatusBadRequest, "message is required")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()

		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if generateTimeout > 0 {
			var tcancel context.CancelFunc
			joinedCtx, tcancel = context.WithTimeout(joinedCtx, generateTimeout)
			defer tcancel()
		}

		// Look up the session; an unknown or expired id starts a new one.
		sess := sessions.get(req.Session)
		if sess == nil {
			modelID, conv, err := svc.NewConversation(joinedCtx, req.Model, req.System)
			if err != nil {
				status := writeServiceError(w, err)
				logRequestEnd(r, lvl, "chat end", status, start, err)
				return
			}
			sess = &chatSession{modelID: modelID, conv: conv}
			sessions.put(sess)
		}

		var opts []genconfig.Option
		if req.MaxNewTokens > 0 {
			opts = append(opts, genconfig.WithMaxNewTokens(req.MaxNewTokens))
		}
		if req.Temperature > 0 {
			opts = append(opts, genconfig.WithTemperature(req.Temperature), genconfig.WithSampling(true))
		}

		sess.mu.Lock()
		reply, err := svc.Say(joinedCtx, sess.modelID, sess.conv, req.Message, opts...)
		msgs := sess.conv.Messages()
		sess.mu.Unlock()
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := writeServiceError(w, err)
			logRequestEnd(r, lvl, "chat end", status, start, err)
			return
		}

		transcript := make([]types.ChatMessage, len(msgs))
		for i, m := range msgs {
			transcript[i] = types.ChatMessage{Role: m.Role, Content: m.Content}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.ChatResponse{
			Session:  sess.conv.ID(),
			Reply:    reply,
			Messages: transcript,
		})
		logRequestEnd(r, lvl, "chat end", http.StatusOK, start, nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON content type and body limit before decoding.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

// writeServiceError maps well-known service errors to HTTP status codes and
// writes the JSON error payload. Returns the status used.
func writeServiceError(w http.ResponseWriter, err error) int {
	switch {
	case service.IsModelNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
		return http.StatusNotFound
	case service.IsTooBusy(err):
		IncrementBackpressure("queue_full")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
		return http.StatusTooManyRequests
	case service.IsDependencyUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		writeJSONError(w, he.StatusCode(), he.Error())
		return he.StatusCode()
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
	return http.StatusInternalServerError
}

func logRequestEnd(r *http.Request, lvl LogLevel, msg string, status int, start time.Time, err error) {
	if lvl < LevelInfo || zlog == nil {
		return
	}
	z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg(msg)
}
