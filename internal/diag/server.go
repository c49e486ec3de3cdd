package diag

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/losvmkernel/vmcore"
)

// Server exposes the core's diagnostics over HTTP: free-space levels,
// per-process metrics, and on-demand memory dumps. Replaces the
// teacher's bare http.ServeMux routing with gorilla/mux path variables.
type Server struct {
	router  *mux.Router
	sys     *vmcore.System
	metrics *Registry
	dumper  *Dumper
	log     *slog.Logger
}

// NewServer builds a diagnostics server over sys, recording into
// metrics and writing dumps via dumper.
func NewServer(sys *vmcore.System, metrics *Registry, dumper *Dumper, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{router: mux.NewRouter(), sys: sys, metrics: metrics, dumper: dumper, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/free", s.handleFree).Methods(http.MethodGet)
	s.router.HandleFunc("/processes", s.handleProcesses).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics/{pid}", s.handleMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/dump/{pid}", s.handleDump).Methods(http.MethodPost)
}

// Handler returns the underlying http.Handler, for ListenAndServe or tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleFree(w http.ResponseWriter, r *http.Request) {
	levels := s.sys.FreeSpaceByLevel()
	writeJSON(w, map[string]any{"free_blocks_by_level": levels})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"pids": s.sys.LiveProcesses()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	pid, err := pidFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resident, err := s.sys.ResidentPageCount(pid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	snap := s.metrics.Snapshot(pid)
	writeJSON(w, map[string]any{
		"pid":                 pid,
		"resident_pages":      resident,
		"page_table_accesses": snap.PageTableAccesses,
		"page_faults":         snap.PageFaults,
		"swap_reads":          snap.SwapReads,
		"swap_writes":         snap.SwapWrites,
		"evictions":           snap.Evictions,
	})
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	pid, err := pidFromVars(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	path, err := s.dumper.Dump(pid)
	if err != nil {
		s.log.Error("diag: dump request failed", "pid", pid, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"path": path})
}

func pidFromVars(r *http.Request) (vmcore.PID, error) {
	raw := mux.Vars(r)["pid"]
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return vmcore.PID(n), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
