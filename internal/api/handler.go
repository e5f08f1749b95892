package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"FlowRank/internal/engine/manager"
	"FlowRank/internal/engine/tracker"
	"FlowRank/internal/model"

	"github.com/gorilla/mux"
)

const defaultTopLimit = 10

// Backend is the read side of a running manager.
type Backend interface {
	Snapshot(ctx context.Context, limit int, largest bool) ([]model.Flow, error)
	Stats(ctx context.Context) (manager.Stats, error)
	DumpIndex(ctx context.Context, w io.Writer) error
	Done() <-chan struct{}
	Err() error
}

// FlowView is the JSON form of a flow.
type FlowView struct {
	Flow      string    `json:"flow"`
	Key       string    `json:"key"`
	SrcIP     string    `json:"src_ip"`
	DstIP     string    `json:"dst_ip"`
	SrcPort   uint16    `json:"src_port"`
	DstPort   uint16    `json:"dst_port"`
	First     uint32    `json:"first_seq"`
	Last      uint32    `json:"last_seq"`
	Size      uint64    `json:"size"`
	Records   uint64    `json:"records"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func newFlowView(f *model.Flow) FlowView {
	return FlowView{
		Flow:      f.FourTuple.String(),
		Key:       f.Key,
		SrcIP:     model.IPv4(f.FourTuple.SrcIP).String(),
		DstIP:     model.IPv4(f.FourTuple.DstIP).String(),
		SrcPort:   f.FourTuple.SrcPort,
		DstPort:   f.FourTuple.DstPort,
		First:     f.First,
		Last:      f.Last,
		Size:      f.Size(),
		Records:   f.Records,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
	}
}

// ViolationView describes the ordering violation that stopped ingestion.
type ViolationView struct {
	Error  string   `json:"error"`
	Flow   FlowView `json:"flow"`
	Record FlowView `json:"record"`
}

// APIHandler serves the HTTP routes over a Backend.
type APIHandler struct {
	backend Backend
}

// NewRouter registers every route on a new mux router.
func NewRouter(backend Backend) *mux.Router {
	h := &APIHandler{backend: backend}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthHandler).Methods("GET")
	r.HandleFunc("/api/v1/flows", h.flowsHandler(false, 0)).Methods("GET")
	r.HandleFunc("/api/v1/flows/top", h.flowsHandler(true, defaultTopLimit)).Methods("GET")
	r.HandleFunc("/api/v1/stats", h.statsHandler).Methods("GET")
	r.HandleFunc("/api/v1/radix", h.radixHandler).Methods("GET")
	return r
}

func (h *APIHandler) flowsHandler(largest bool, defaultLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, fmt.Sprintf("invalid limit '%s'", v), http.StatusBadRequest)
				return
			}
			limit = n
		}

		flows, err := h.backend.Snapshot(r.Context(), limit, largest)
		if err != nil {
			writeError(w, err)
			return
		}
		views := make([]FlowView, len(flows))
		for i := range flows {
			views[i] = newFlowView(&flows[i])
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (h *APIHandler) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backend.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) radixHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.backend.DumpIndex(r.Context(), w); err != nil {
		log.Printf("Error writing radix dump: %v", err)
	}
}

func (h *APIHandler) healthHandler(w http.ResponseWriter, r *http.Request) {
	var seqErr *tracker.SequenceError
	if errors.As(h.backend.Err(), &seqErr) {
		writeJSON(w, http.StatusServiceUnavailable, ViolationView{
			Error:  seqErr.Error(),
			Flow:   newFlowView(&seqErr.Flow),
			Record: newFlowView(seqErr.RecordFlow()),
		})
		return
	}
	if err := h.backend.Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, manager.ErrNotStarted) {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
