// Package broker implements the local session broker: a short-lived HTTP
// server that authenticates against the remote service, forwards document and
// content reads, and exposes a pseudo-RPC surface for mutations with the
// session's anti-forgery token injected server-side.
package broker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/middleware"
)

// Config captures everything the broker needs to reach the remote service and
// establish a session.
type Config struct {
	// RemoteURL is the remote service base, e.g. https://host:443.
	RemoteURL string
	// Username/Password enable basic auth; Token enables bearer auth instead.
	Username string
	Password string
	Token    string
	// Port binds the local listener; 0 requests an OS-assigned port.
	Port int
	// Session poll cadence and budget.
	SessionInterval time.Duration
	SessionAttempts int
}

// Broker is the per-run local session broker. Start one per pipeline run and
// Close it when the run ends; the local port is released deterministically.
type Broker struct {
	cfg      Config
	server   *http.Server
	listener net.Listener
	remote   *http.Client
	logger   *zap.Logger

	runID   string
	staging *staging
	session session
}

// Start binds the local listener, starts serving, and blocks until the remote
// session is established. On any failure the listener is already released.
func Start(ctx context.Context, cfg Config, logger *zap.Logger) (*Broker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RemoteURL == "" {
		return nil, errors.New("remote server URL is required")
	}
	if cfg.SessionInterval <= 0 {
		cfg.SessionInterval = 6 * time.Second
	}
	if cfg.SessionAttempts <= 0 {
		cfg.SessionAttempts = 10
	}
	cfg.RemoteURL = strings.TrimRight(cfg.RemoteURL, "/")

	runID := uuid.NewString()
	b := &Broker{
		cfg:     cfg,
		remote:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With(zap.String("run_id", runID)),
		runID:   runID,
		staging: newStaging(runID),
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("bind broker listener: %w", err)
	}
	b.listener = listener
	b.server = &http.Server{Handler: b.routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if serveErr := b.server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			b.logger.Error("broker server stopped", zap.Error(serveErr))
		}
	}()
	b.logger.Info("session broker listening", zap.String("addr", b.Addr()))

	if err := b.establishSession(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Addr returns the broker's local base URL.
func (b *Broker) Addr() string {
	return "http://" + b.listener.Addr().String()
}

// RunID returns the run correlation id stamped on forwarded requests.
func (b *Broker) RunID() string {
	return b.runID
}

// Stage installs the per-run create/update payloads for the pseudo-RPC surface.
func (b *Broker) Stage(run cms.StagedRun) {
	b.staging.set(run)
}

// Close shuts the server down and releases the local port.
func (b *Broker) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		b.logger.Warn("broker shutdown", zap.Error(err))
		_ = b.server.Close()
	}
	b.logger.Info("session broker stopped")
}

func (b *Broker) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.requestIDMiddleware)
	r.Use(b.recoverMiddleware)
	r.Use(middleware.Metrics)

	r.Get("/documents/*", b.forward)
	r.Get("/content/*", b.forward)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/rpc", func(r chi.Router) {
		r.Post("/create-item", b.createItem)
		r.Post("/update-item", b.updateItem)
		r.Post("/add-to-channel", b.addToChannel)
		r.Post("/publish", b.publish)
		r.Post("/export", b.exportSite)
		r.Post("/activate", b.activateSite)
	})
	return r
}

func (b *Broker) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", b.runID+"-"+uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (b *Broker) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				b.logger.Error("panic recovered in broker handler", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal broker error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// forward proxies a GET under the document/content namespaces to the remote
// service, injecting auth and rewriting response headers so browser-hosted
// callers and case-sensitive clients both behave.
func (b *Broker) forward(w http.ResponseWriter, r *http.Request) {
	target := b.cfg.RemoteURL + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	b.injectAuth(req)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := b.remote.Do(req)
	if err != nil {
		metrics.ObserveBrokerForward(routeLabel(r.URL.Path), http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("forward to remote failed: %v", err))
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	h := w.Header()
	for key, values := range resp.Header {
		canonical := http.CanonicalHeaderKey(key)
		for _, v := range values {
			h.Add(canonical, v)
		}
	}
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		b.logger.Warn("copy forwarded body", zap.Error(err))
	}
	metrics.ObserveBrokerForward(routeLabel(r.URL.Path), resp.StatusCode)
}

func routeLabel(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "unknown"
	}
	return parts[0]
}

func (b *Broker) injectAuth(req *http.Request) {
	if b.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.Token)
		return
	}
	creds := base64.StdEncoding.EncodeToString([]byte(b.cfg.Username + ":" + b.cfg.Password))
	req.Header.Set("Authorization", "Basic "+creds)
}
