package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"local_mythmaker/agents"
	"local_mythmaker/backend"
	"local_mythmaker/imaging"
	"local_mythmaker/orchestrator"
	"local_mythmaker/research"
	"local_mythmaker/trace"
)

//go:embed web
var embeddedStatic embed.FS

// Server exposes the myth pipeline over HTTP for the bundled web page.
// Each run gets its own recorder and scheduler; the backend client and
// search tool are shared.
type Server struct {
	client   backend.Client
	search   research.SearchTool
	opts     orchestrator.Options
	store    *runStore
	staticFS http.Handler
	log      *zap.Logger
}

type runStore struct {
	mu   sync.Mutex
	runs map[string]*orchestrator.RunResult
}

func newStore() *runStore {
	return &runStore{runs: make(map[string]*orchestrator.RunResult)}
}

func (s *runStore) set(id string, res *orchestrator.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = res
}

func (s *runStore) get(id string) (*orchestrator.RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.runs[id]
	return res, ok
}

func New(client backend.Client, search research.SearchTool, opts orchestrator.Options, log *zap.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("backend client required")
	}
	if search == nil {
		return nil, errors.New("search tool required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	sub, err := fs.Sub(embeddedStatic, "web")
	if err != nil {
		return nil, err
	}

	return &Server{
		client:   client,
		search:   search,
		opts:     opts,
		store:    newStore(),
		staticFS: http.FileServer(http.FS(sub)),
		log:      log,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/myths", s.handleMythCreate)
	mux.HandleFunc("/api/myths/", s.handleMythByID)
	mux.Handle("/", s.staticHandler())
	return s.logMiddleware(mux)
}

func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/" {
			r.URL.Path = "/index.html"
		}
		s.staticFS.ServeHTTP(w, r)
	})
}

// --- Handlers ---

type runResp struct {
	RunID  string                  `json:"run_id"`
	Result *orchestrator.RunResult `json:"result"`
}

// errResp carries a failed run's partial trace so the UI can show which
// agent call broke.
type errResp struct {
	Error string         `json:"error"`
	Trace []trace.Record `json:"trace,omitempty"`
}

func (s *Server) handleMythCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxBytes + 1<<20); err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}
	location := strings.TrimSpace(r.FormValue("location"))
	if location == "" {
		http.Error(w, "location is required", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image upload is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	art, err := imaging.Ingest(raw, hdr.Header.Get("Content-Type"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		http.Error(w, err.Error(), status)
		return
	}

	sched, err := s.newRun()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Worst case: visionary+investigator, then a bard and critic call per
	// attempt, each bounded by the per-call timeout.
	calls := 2 + 2*(s.opts.MaxIterations+1)
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(calls)*s.opts.PerCallTimeout)
	defer cancel()

	result, err := sched.Run(ctx, orchestrator.RunInput{Location: location, Artifact: art})
	if err != nil {
		s.log.Error("run failed", zap.String("location", location), zap.Error(err))
		// The partial trace travels with the error so callers can see
		// which agent call failed.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(errResp{Error: err.Error(), Trace: sched.Trace()})
		return
	}

	id := uuid.NewString()
	s.store.set(id, result)
	writeJSON(w, runResp{RunID: id, Result: result})
}

func (s *Server) handleMythByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/myths/")
	id, wantHTML := strings.CutSuffix(rest, "/html")
	id = strings.TrimSuffix(id, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	result, ok := s.store.get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if wantHTML {
		html, err := renderMythPage(result)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}
	writeJSON(w, runResp{RunID: id, Result: result})
}

// newRun wires a fresh recorder, invoker, and scheduler so traces never
// bleed between runs.
func (s *Server) newRun() (*orchestrator.Scheduler, error) {
	rec := trace.NewRecorder()
	inv, err := agents.NewInvoker(s.client, s.search, rec, s.log, s.opts.PerCallTimeout, s.opts.ToolRoundTrips)
	if err != nil {
		return nil, err
	}
	return orchestrator.NewScheduler(inv, rec, s.opts, s.log)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}
