package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imaged/internal/artifact"
	"imaged/internal/textgen"
	"imaged/pkg/types"
)

// Service defines the image-generation methods required by the HTTP layer.
type Service interface {
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	Families() types.FamiliesResponse
	Status() types.StatusResponse
	Ready() bool
}

// TextService serves the text completion endpoints. May be nil.
type TextService interface {
	Generate(ctx context.Context, req types.TextGenerateRequest) (types.TextGenerateResponse, error)
	Chat(ctx context.Context, req types.ChatRequest) (types.ChatResponse, error)
	Config() textgen.ConfigInfo
}

// ArtifactLister exposes the recent-artifacts index. May be nil.
type ArtifactLister interface {
	Recent(ctx context.Context, limit int) ([]artifact.Record, error)
}

// Options carries the optional collaborators of the mux.
type Options struct {
	Text      TextService
	Artifacts ArtifactLister
	// ImagesDir, when set, is served statically under /images/.
	ImagesDir string
}

func NewMux(svc Service, opts Options) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Post("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		start := time.Now()
		logEvent().Str("family", req.Family).Str("request_id", middleware.GetReqID(r.Context())).Msg("generate start")

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Generate(ctx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := writeDomainError(w, err)
			logEvent().Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("generate end")
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logEvent().Int("status", http.StatusOK).Dur("dur", time.Since(start)).Int("images", len(resp.Images)).Msg("generate end")
	})

	r.Get("/api/models/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Families())
	})

	r.Get("/api/images", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 500 {
				writeJSONError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
				return
			}
			limit = n
		}
		var rows []artifact.Record
		if opts.Artifacts != nil {
			var err error
			rows, err = opts.Artifacts.Recent(r.Context(), limit)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "failed to list images")
				return
			}
		}
		if rows == nil {
			rows = []artifact.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"images": rows})
	})

	r.Route("/api/text", func(r chi.Router) {
		r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
			if opts.Text == nil {
				writeJSONError(w, http.StatusServiceUnavailable, "text generation not configured")
				return
			}
			var req types.TextGenerateRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			resp, err := opts.Text.Generate(ctx, req)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
			if opts.Text == nil {
				writeJSONError(w, http.StatusServiceUnavailable, "text generation not configured")
				return
			}
			var req types.ChatRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			resp, err := opts.Text.Chat(ctx, req)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
			if opts.Text == nil {
				writeJSON(w, http.StatusOK, textgen.ConfigInfo{})
				return
			}
			writeJSON(w, http.StatusOK, opts.Text.Config())
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "imaged",
			"status":  "running",
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
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

	if opts.ImagesDir != "" {
		fs := http.StripPrefix("/images/", http.FileServer(http.Dir(opts.ImagesDir)))
		r.Get("/images/*", fs.ServeHTTP)
	}

	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON content type and body limit, then decodes
// into dst. It writes the error response itself and reports success.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
