// Package statusserver exposes experiment health and per-scale status
// over HTTP while long engine runs are in progress.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/experiment"
	"github.com/vk/scalegrid/internal/scale"
)

// Source provides the status snapshots served. *experiment.Experiment
// implements it.
type Source interface {
	Name() string
	Status(ctx context.Context) []experiment.ScaleStatus
}

// ScaleView is the JSON form of one scale's status.
type ScaleView struct {
	Scale              int    `json:"scale"`
	Domain             string `json:"domain"`
	State              string `json:"state"`
	ParamFile          string `json:"param_file"`
	OutputFile         string `json:"output_file"`
	ParamPresent       bool   `json:"param_present"`
	OutputPresent      bool   `json:"output_present"`
	LastExitCode       *int   `json:"last_exit_code,omitempty"`
	LastElapsedSeconds *int64 `json:"last_elapsed_seconds,omitempty"`
	Error              string `json:"error,omitempty"`
}

// StatusView is the JSON body of /status.
type StatusView struct {
	Experiment string      `json:"experiment"`
	Scales     []ScaleView `json:"scales"`
}

// Server serves /health, /status and /status/{scale}.
type Server struct {
	src    Source
	router chi.Router

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New creates a Server for src.
func New(src Source) *Server {
	s := &Server{src: src, router: chi.NewRouter()}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/status/{scale}", s.handleScale)
	return s
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr (":0" picks a free port) and serves in the
// background. Request logging uses the logger of ctx.
func (s *Server) Start(ctx context.Context, addr string) error {
	logger := ctxlog.FromContext(ctx)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.logRequests(ctx, s.router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv, s.listener = srv, ln
	s.mu.Unlock()

	go func() {
		logger.Info("Status server starting.", "address", "http://"+ln.Addr().String()+"/status")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully. It is a no-op if Start was never
// called.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctxlog.FromContext(ctx).Debug("Shutting down status server.")
	return srv.Shutdown(ctx)
}

func (s *Server) logRequests(ctx context.Context, next http.Handler) http.Handler {
	logger := ctxlog.FromContext(ctx)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Status server request.", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.src.Status(r.Context())
	view := StatusView{Experiment: s.src.Name(), Scales: make([]ScaleView, 0, len(statuses))}
	for _, st := range statuses {
		view.Scales = append(view.Scales, toView(st))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleScale(w http.ResponseWriter, r *http.Request) {
	want, err := scale.Parse(chi.URLParam(r, "scale"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for _, st := range s.src.Status(r.Context()) {
		if st.Scale == want {
			writeJSON(w, http.StatusOK, toView(st))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "scale " + want.String() + " is not part of the experiment"})
}

func toView(st experiment.ScaleStatus) ScaleView {
	v := ScaleView{
		Scale:         int(st.Scale),
		Domain:        st.Scale.String(),
		State:         st.StateName,
		ParamFile:     st.ParamFile,
		OutputFile:    st.OutputFile,
		ParamPresent:  st.ParamPresent,
		OutputPresent: st.OutputPresent,
	}
	if o := st.LastOutcome; o != nil {
		code, elapsed := o.ExitCode, o.ElapsedSeconds
		v.LastExitCode = &code
		if o.HasElapsed() {
			v.LastElapsedSeconds = &elapsed
		}
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
