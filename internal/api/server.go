// Package api implements the flagdeck HTTP surface: bulk and per-flag
// evaluation, the SSE event stream, health and meta endpoints, and the
// minimal admin surface that feeds the stream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flagdeck/flagdeck/internal/auth"
	"github.com/flagdeck/flagdeck/internal/snapshot"
	"github.com/flagdeck/flagdeck/internal/store"
	"github.com/flagdeck/flagdeck/internal/telemetry"
)

// Version is the server version reported by /v1/meta.
const Version = "1.0.0"

// Server wires the store, the snapshot cache and the auth material
// into an http.Handler.
type Server struct {
	store     store.Store
	cache     *snapshot.Cache
	log       *slog.Logger
	env       string
	sdkKey    string // plain key, constant-time compared
	sdkHash   string // bcrypt hash, takes precedence over sdkKey
	adminKey  string
	heartbeat time.Duration
}

// Options configures a Server.
type Options struct {
	Store             store.Store
	Cache             *snapshot.Cache
	Logger            *slog.Logger
	Env               string
	SDKKey            string
	SDKKeyHash        string
	AdminAPIKey       string
	HeartbeatInterval time.Duration
}

// NewServer creates a Server. A nil logger discards output; a zero
// heartbeat interval defaults to 15s.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	hb := opts.HeartbeatInterval
	if hb <= 0 {
		hb = 15 * time.Second
	}
	return &Server{
		store:     opts.Store,
		cache:     opts.Cache,
		log:       log,
		env:       opts.Env,
		sdkKey:    opts.SDKKey,
		sdkHash:   opts.SDKKeyHash,
		adminKey:  opts.AdminAPIKey,
		heartbeat: hb,
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/meta", s.handleMeta)

	// SDK surface. The stream route carries no timeout; evaluation
	// requests are bounded.
	r.Group(func(r chi.Router) {
		r.Use(s.authSDK)
		r.Get("/v1/stream", s.handleStream)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.authSDK)
		r.Use(middleware.Timeout(5 * time.Second))
		r.Post("/v1/evaluate", s.handleEvaluateAll)
		r.Post("/v1/flags/{key}/evaluate", s.handleEvaluateFlag)
	})

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(s.authAdmin)
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/v1/admin/flags", s.handleListFlags)
		r.Get("/v1/admin/flags/{key}", s.handleGetFlag)
		r.Put("/v1/admin/flags/{key}", s.handleUpsertFlag)
		r.Post("/v1/admin/flags/{key}/archive", s.handleArchiveFlag)
		r.Post("/v1/admin/flags/{key}/restore", s.handleRestoreFlag)
		r.Post("/v1/admin/killswitches/{key}/activate", s.handleActivateKillSwitch)
		r.Post("/v1/admin/killswitches/{key}/deactivate", s.handleDeactivateKillSwitch)
	})

	return r
}

type metaResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	ETag        string `json:"etag"`
}

func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	snap := s.cache.Load()
	writeJSON(w, http.StatusOK, metaResponse{
		Name:        "flagdeck",
		Version:     Version,
		Environment: s.env,
		ETag:        snap.ETag,
	})
}

// authSDK authenticates evaluation and stream requests with the SDK
// key: bcrypt verification when a hash is configured, constant-time
// comparison otherwise. No configured key means an open server (local
// development).
func (s *Server) authSDK(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sdkKey == "" && s.sdkHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			unauthorizedError(w, r, "missing bearer token")
			return
		}
		ok := false
		if s.sdkHash != "" {
			ok = auth.VerifySDKKey(token, s.sdkHash)
		} else {
			ok = auth.VerifyKeyConstantTime(token, s.sdkKey)
		}
		if !ok {
			unauthorizedError(w, r, "invalid SDK key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			unauthorizedError(w, r, "missing bearer token")
			return
		}
		if s.adminKey == "" || !auth.VerifyKeyConstantTime(token, s.adminKey) {
			forbiddenError(w, r, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
