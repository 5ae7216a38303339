// Package server exposes the HTTP boundary: ingestion, data queries and
// configuration control for the polling dashboard.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/qzhari/envmon-server/internal/control"
	"github.com/qzhari/envmon-server/internal/device"
	"github.com/qzhari/envmon-server/internal/ingest"
	"github.com/qzhari/envmon-server/internal/stats"
	"github.com/qzhari/envmon-server/internal/store"
	"github.com/qzhari/envmon-server/pkg/config"
	"github.com/rs/cors"
)

// Server is the HTTP boundary over the aggregation-and-control engine.
type Server struct {
	httpServer *http.Server
	store      store.Store
	stats      *stats.Aggregator
	state      *device.Manager
	evaluator  *control.Evaluator
	ingestor   *ingest.Ingestor
}

// New creates a Server wired to the engine components.
func New(cfg config.HTTPConfig, s store.Store, agg *stats.Aggregator, state *device.Manager, ev *control.Evaluator, ing *ingest.Ingestor) *Server {
	srv := &Server{
		store:     s,
		stats:     agg,
		state:     state,
		evaluator: ev,
		ingestor:  ing,
	}

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv
}

// Handler builds the routed handler with logging and CORS middleware.
// Exposed for tests.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/readings", s.handleIngest).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/api/data", s.handleData).Methods(http.MethodGet)
	router.HandleFunc("/api/currentConfig", s.handleCurrentConfig).Methods(http.MethodGet)
	router.HandleFunc("/api/updateConfig", s.handleUpdateConfig).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// The dashboard polls from a different origin, as the original
	// deployment did.
	return cors.AllowAll().Handler(handlers.LoggingHandler(os.Stdout, router))
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ingestRequest is the measurement payload from the device; the server
// stamps date and time at receipt.
type ingestRequest struct {
	CO2  float64 `json:"co2"`
	Temp float64 `json:"temp"`
	Hum  float64 `json:"hum"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest

	if r.Method == http.MethodGet {
		// Legacy firmware path: GET with query parameters.
		values, err := parseQueryValues(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req = *values
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	reading, err := s.ingestor.IngestValues(r.Context(), req.Temp, req.Hum, req.CO2)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "created",
		"reading": reading,
	})
}

func parseQueryValues(r *http.Request) (*ingestRequest, error) {
	q := r.URL.Query()
	if q.Get("co2") == "" || q.Get("temp") == "" || q.Get("hum") == "" {
		return nil, fmt.Errorf("co2, temp and hum query parameters are required")
	}

	var req ingestRequest
	var err error
	if req.CO2, err = strconv.ParseFloat(q.Get("co2"), 64); err != nil {
		return nil, fmt.Errorf("invalid co2: %s", q.Get("co2"))
	}
	if req.Temp, err = strconv.ParseFloat(q.Get("temp"), 64); err != nil {
		return nil, fmt.Errorf("invalid temp: %s", q.Get("temp"))
	}
	if req.Hum, err = strconv.ParseFloat(q.Get("hum"), 64); err != nil {
		return nil, fmt.Errorf("invalid hum: %s", q.Get("hum"))
	}
	return &req, nil
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	readings, err := s.store.Query(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if readings == nil {
		readings = []store.Reading{}
	}

	// Averages are rounded here, at the presentation boundary only.
	overall := make(map[string]stats.DayStats)
	for date, st := range s.stats.AllStats() {
		overall[date] = st.Rounded()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":          readings,
		"overall_stats": overall,
	})
}

func (s *Server) handleCurrentConfig(w http.ResponseWriter, r *http.Request) {
	// Consume first so the pending notification rides along exactly once.
	msg, err := s.state.ConsumeNotification(r.Context())
	if err != nil {
		// The notification is already consumed; losing it beats failing
		// the poll and re-delivering.
		fmt.Printf("Failed to persist notification consumption: %v\n", err)
	}

	snap := s.state.Snapshot()
	snap.Notification = msg
	writeJSON(w, http.StatusOK, snap)
}

// updateRequest carries only the operator-updatable fields. Legacy clients
// echo the entire config record; everything else is deliberately ignored so
// a stale snapshot cannot clobber latest readings or identity fields.
type updateRequest struct {
	RelayState         *bool    `json:"relayState"`
	ManualRelayControl *bool    `json:"manualRelayControl"`
	TempThreshold      *float64 `json:"tempThreshold"`
	HumiThreshold      *float64 `json:"humiThreshold"`
	CO2Threshold       *float64 `json:"co2Threshold"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	upd := device.Update{
		RelayState:         req.RelayState,
		ManualRelayControl: req.ManualRelayControl,
		TempThreshold:      req.TempThreshold,
		HumiThreshold:      req.HumiThreshold,
		CO2Threshold:       req.CO2Threshold,
	}

	snap, err := s.evaluator.OnConfigUpdate(r.Context(), upd)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Printf("Failed to encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP statuses: validation
// failures are the caller's fault, storage failures are retryable.
func writeEngineError(w http.ResponseWriter, err error) {
	var vErr *store.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	var sErr *store.StorageError
	if errors.As(err, &sErr) {
		writeError(w, http.StatusServiceUnavailable, sErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
