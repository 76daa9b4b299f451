// Package status serves a read-only HTTP view of a running scheduler.
// Handlers never touch scheduler state: every response is built from a
// Snapshot obtained from the coordinator loop.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ossim/ossim/sim"
)

// Source produces snapshots on demand. *sim.Coordinator implements it.
type Source interface {
	Inspect(ctx context.Context) (*sim.Snapshot, error)
}

// Server routes status requests to a Source.
type Server struct {
	src          Source
	router       chi.Router
	startTime    time.Time
	queryTimeout time.Duration
}

// New creates a Server.
func New(src Source) *Server {
	s := &Server{
		src:          src,
		router:       chi.NewRouter(),
		startTime:    time.Now(),
		queryTimeout: time.Second,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/processes/{pid}", s.handleProcess)
	})
}

// snapshot asks the source for a fresh snapshot, writing an error response on failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*sim.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	snap, err := s.src.Inspect(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler unavailable: "+err.Error())
		return nil, false
	}
	return snap, true
}

type healthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Policy  string `json:"policy"`
	ClockMs uint32 `json:"clock_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	respondOK(w, healthResponse{
		Status:  "healthy",
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Policy:  snap.Policy,
		ClockMs: snap.ClockMs,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		respondOK(w, snap)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		respondOK(w, snap.Metrics)
	}
}

type processLocation struct {
	Location string          `json:"location"`
	Process  sim.ProcessView `json:"process"`
}

// handleProcess lists every live process reporting the given client pid.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "pid must be a 32-bit integer")
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	found := findPID(snap, int32(pid))
	if len(found) == 0 {
		respondError(w, http.StatusNotFound, "no live process with pid "+strconv.FormatInt(pid, 10))
		return
	}
	respondOK(w, found)
}

func findPID(snap *sim.Snapshot, pid int32) []processLocation {
	var out []processLocation
	collect := func(loc string, views []sim.ProcessView) {
		for _, v := range views {
			if v.PID == pid {
				out = append(out, processLocation{Location: loc, Process: v})
			}
		}
	}
	if snap.CPU != nil {
		collect("cpu", []sim.ProcessView{*snap.CPU})
	}
	for level, views := range snap.Ready {
		collect("ready-"+strconv.Itoa(level), views)
	}
	collect("blocked", snap.Blocked)
	collect("command", snap.Command)
	return out
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, src Source) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           New(src),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logrus.Infof("Status server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
