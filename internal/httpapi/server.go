package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/signalsfoundry/latency-sim/core"
	"github.com/signalsfoundry/latency-sim/internal/logging"
	"github.com/signalsfoundry/latency-sim/internal/observability"
	"github.com/signalsfoundry/latency-sim/kb"
	"github.com/signalsfoundry/latency-sim/model"
)

// Server exposes the simulation engine over JSON/HTTP for renderers and
// teaching frontends. It performs no rendering of its own: it serves
// delay breakdowns, journey timelines, and per-tick snapshots, and
// accepts playback control.
type Server struct {
	log       logging.Logger
	store     *kb.ScenarioStore
	delays    *core.DelayModel
	collector *observability.SimCollector

	mu      sync.Mutex
	tracker *core.Tracker
	active  string
}

// NewServer wires a server over the given store and delay model. The
// collector may be nil when metrics are not wanted.
func NewServer(store *kb.ScenarioStore, delays *core.DelayModel, collector *observability.SimCollector, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		log:       log,
		store:     store,
		delays:    delays,
		collector: collector,
	}

	// Rebuild the live tracker whenever the active scenario is replaced
	// under us.
	store.Subscribe(func(ev kb.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ev.Type == kb.EventScenarioUpdated && ev.Name == s.active {
			if tracker, err := core.NewTracker(s.delays, ev.Path); err == nil {
				s.tracker = tracker
				s.observeScenario(ev.Path)
			}
		}
	})
	return s
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	if s.collector != nil {
		r.Use(s.collector.Middleware())
		r.Path("/metrics").Handler(s.collector.Handler())
	}
	r.Use(s.requestLogging)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/scenarios", s.handleListScenarios).Methods(http.MethodGet)
	api.HandleFunc("/scenarios/{name}", s.handlePutScenario).Methods(http.MethodPut)
	api.HandleFunc("/scenarios/{name}/activate", s.handleActivate).Methods(http.MethodPost)
	api.HandleFunc("/delays", s.handleDelays).Methods(http.MethodGet)
	api.HandleFunc("/segments", s.handleSegments).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/advance", s.handleAdvance).Methods(http.MethodPost)
	api.HandleFunc("/control", s.handleControl).Methods(http.MethodPost)
	return r
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, log := logging.WithRequestLogger(r.Context(), s.log)
		log.Debug(ctx, "api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"scenarios": s.store.Names()})
}

func (s *Server) handlePutScenario(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	// Everything LoadScenario rejects is wrong input from the caller.
	path, err := core.LoadScenario(r.Body, s.log)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	existed := s.store.Get(name) != nil
	if err := s.store.Put(name, path); err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]string{"scenario": name})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path := s.store.Get(name)
	if path == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown scenario"})
		return
	}

	tracker, err := core.NewTracker(s.delays, path)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	s.tracker = tracker
	s.active = name
	s.mu.Unlock()

	s.observeScenario(path)
	s.log.Info(r.Context(), "scenario activated",
		logging.String("scenario", name),
		logging.Int("hops", len(path.Hops)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"active": name})
}

func (s *Server) handleDelays(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("scenario")
	path := s.store.Get(name)
	if path == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown scenario"})
		return
	}

	total, err := s.delays.TotalPathDelay(path)
	if err != nil {
		writeError(w, err)
		return
	}
	rtt, err := s.delays.RoundTripTime(path)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, delaysResponse{
		Scenario: name,
		Delay:    total,
		RTTMs:    rtt,
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("scenario")
	path := s.store.Get(name)
	if path == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown scenario"})
		return
	}

	segments, err := s.delays.BuildSegments(path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario": name,
		"segments": segments,
		"total_ms": core.JourneyDuration(segments),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	tracker := s.activeTracker()
	if tracker == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no active scenario"})
		return
	}
	writeJSON(w, http.StatusOK, tracker.Snapshot())
}

type advanceRequest struct {
	DeltaMs float64 `json:"delta_ms"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	tracker := s.activeTracker()
	if tracker == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no active scenario"})
		return
	}

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result := tracker.Advance(req.DeltaMs)
	s.collector.ObserveTick(result)
	writeJSON(w, http.StatusOK, result)
}

type controlRequest struct {
	Action     string  `json:"action"` // play, pause, reset, seek, speed, window, sendmode, send
	TimeMs     float64 `json:"time_ms"`
	Speed      float64 `json:"speed"`
	WindowMs   float64 `json:"window_ms"`
	Mode       string  `json:"mode"`
	IntervalMs float64 `json:"interval_ms"`
	BurstSize  int     `json:"burst_size"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	tracker := s.activeTracker()
	if tracker == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no active scenario"})
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var result core.TickResult
	switch req.Action {
	case "play":
		tracker.Play()
		result = core.TickResult{Snapshot: tracker.Snapshot()}
	case "pause":
		tracker.Pause()
		result = core.TickResult{Snapshot: tracker.Snapshot()}
	case "reset":
		result = tracker.Reset()
	case "seek":
		result = tracker.SetTime(req.TimeMs)
	case "speed":
		tracker.SetPlaybackSpeed(req.Speed)
		result = core.TickResult{Snapshot: tracker.Snapshot()}
	case "window":
		tracker.SetWindow(req.WindowMs)
		result = core.TickResult{Snapshot: tracker.Snapshot()}
	case "sendmode":
		result = tracker.SetSendMode(model.SendMode(req.Mode), req.IntervalMs, req.BurstSize)
	case "send":
		result = tracker.ManualSend()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action " + req.Action})
		return
	}

	s.collector.ObserveTick(result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) observeScenario(path *model.Path) {
	s.collector.SetScenarioCounts(len(path.Nodes), len(path.Hops))
	if total, err := s.delays.TotalPathDelay(path); err == nil {
		s.collector.SetScenarioDelay(total)
	}
}

func (s *Server) activeTracker() *core.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker
}

type delaysResponse struct {
	Scenario string         `json:"scenario"`
	Delay    core.PathDelay `json:"delay"`
	RTTMs    float64        `json:"rtt_ms"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses: structural path
// problems are the client's fault, everything else is ours.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrInvalidPath) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
