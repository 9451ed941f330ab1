package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ugobe007/pythh-sub021/internal/guard"
	"github.com/ugobe007/pythh-sub021/internal/metrics"
	"github.com/ugobe007/pythh-sub021/internal/privacy"
	"github.com/ugobe007/pythh-sub021/internal/store"
	"github.com/ugobe007/pythh-sub021/internal/versions"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

type PublicHandler struct {
	store    store.Store
	versions *versions.Service
	guard    *guard.Guard
	logger   *slog.Logger
}

func NewPublicHandler(s store.Store, v *versions.Service, g *guard.Guard, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{store: s, versions: v, guard: g, logger: logger}
}

// Matches returns the anonymized match feed. Only buckets the latest
// k-anonymity run counted and cleared are served.
// GET /api/v1/matches/public?limit=
func (h *PublicHandler) Matches(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeedLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		if n > maxFeedLimit {
			n = maxFeedLimit
		}
		limit = n
	}

	gate, err := h.guard.Gate(r.Context())
	if err != nil {
		h.logger.Error("k-anonymity gate unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "match feed temporarily unavailable"})
		return
	}

	// Only matches inside the gated window can have been counted.
	rows, err := h.store.ListMatches(r.Context(), store.MatchFilter{Since: gate.WindowStart, Limit: limit})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	feed, dropped := privacy.Feed(rows, gate.AllowedSet())
	if dropped > 0 {
		metrics.FeedRowsSuppressed.Add(float64(dropped))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": feed,
		"count":   len(feed),
	})
}

// ActiveWeights returns the active weight version.
// GET /api/v1/weights/active
func (h *PublicHandler) ActiveWeights(w http.ResponseWriter, r *http.Request) {
	v, err := h.versions.Active(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Explain returns the stored score and its breakdown for a startup.
// GET /api/v1/scoring/explain/{startup_id}
func (h *PublicHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "startup_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid startup_id"})
		return
	}

	st, err := h.store.GetStartup(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if st == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "startup not found"})
		return
	}
	if st.Score == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "startup not scored"})
		return
	}

	writeJSON(w, http.StatusOK, st.Score)
}
