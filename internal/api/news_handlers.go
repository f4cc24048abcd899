package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/newsfeed/internal/feed"
	"github.com/onnwee/newsfeed/internal/middleware"
	"github.com/onnwee/newsfeed/internal/store"
)

// NewsHandlers holds dependencies for the news retrieval and ingestion
// endpoints.
type NewsHandlers struct {
	store  *store.Store
	logger *slog.Logger
}

// NewNewsHandlers creates a new NewsHandlers instance.
func NewNewsHandlers(s *store.Store, logger *slog.Logger) *NewsHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsHandlers{store: s, logger: logger}
}

// IngestResponse is the acknowledgement returned by POST /ingest.
type IngestResponse struct {
	Status  string `json:"status"`
	Added   int    `json:"added"`
	Dropped int    `json:"dropped"`
}

// Retrieve handles GET /news. It returns the accepted items ranked by
// final score descending with publication time as a tie-break, after
// recomputing recency against the current instant. An empty list is a
// valid result.
func (h *NewsHandlers) Retrieve(w http.ResponseWriter, r *http.Request) {
	items := h.store.Retrieve()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(items); err != nil {
		h.logger.Error("failed to encode retrieve response", "error", err)
	}
}

// Ingest handles POST /ingest. Submitted items bypass the sources and
// the relevance classifier; they are assumed pre-approved and are only
// deduplicated by ID. Items missing an ID or publication time are
// dropped and counted, not fatal.
func (h *NewsHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var items []feed.Item
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	valid := make([]feed.Item, 0, len(items))
	dropped := 0
	for _, it := range items {
		if !it.Valid() {
			dropped++
			h.logger.Warn("dropping malformed submitted item", "id", it.ID, "title", it.Title)
			continue
		}
		valid = append(valid, it)
	}

	added := h.store.Ingest(valid)
	h.logger.Info("direct ingest processed",
		"received", len(items),
		"added", added,
		"dropped", dropped,
		"total", h.store.Len())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(IngestResponse{Status: "ACK", Added: added, Dropped: dropped}); err != nil {
		h.logger.Error("failed to encode ingest response", "error", err)
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Items     int    `json:"items"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /healthz (liveness probe). The process is healthy
// as long as it can serve requests; ingestion failures never surface
// here because ingestion is decoupled from request handling.
func (h *NewsHandlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Items:     h.store.Len(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", "error", err)
	}
}
