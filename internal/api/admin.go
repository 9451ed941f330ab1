package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ugobe007/pythh-sub021/internal/guard"
	"github.com/ugobe007/pythh-sub021/internal/privacy"
	"github.com/ugobe007/pythh-sub021/internal/rescore"
	"github.com/ugobe007/pythh-sub021/internal/scoring"
	"github.com/ugobe007/pythh-sub021/internal/store"
	"github.com/ugobe007/pythh-sub021/internal/versions"
)

type AdminHandler struct {
	store    store.Store
	versions *versions.Service
	rescore  *rescore.Service
	guard    *guard.Guard
	logger   *slog.Logger
}

func NewAdminHandler(s store.Store, v *versions.Service, rs *rescore.Service, g *guard.Guard, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: s, versions: v, rescore: rs, guard: g, logger: logger}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// ListWeights returns the version history, oldest first.
// GET /api/v1/admin/weights
func (h *AdminHandler) ListWeights(w http.ResponseWriter, r *http.Request) {
	all, err := h.versions.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// Supersede replaces the active weight version.
// POST /api/v1/admin/weights/supersede
func (h *AdminHandler) Supersede(w http.ResponseWriter, r *http.Request) {
	var cmd versions.SupersedeCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	v, err := h.versions.Supersede(r.Context(), cmd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"active_version": v.Version})
}

type rollbackRequest struct {
	TargetVersion string `json:"target_version"`
}

// Rollback reactivates an earlier weight version.
// POST /api/v1/admin/weights/rollback
func (h *AdminHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TargetVersion) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target_version is required"})
		return
	}
	v, err := h.versions.Rollback(r.Context(), req.TargetVersion)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active_version": v.Version})
}

type createStartupRequest struct {
	Name          string           `json:"name"`
	PublicProfile bool             `json:"public_profile"`
	Sectors       []string         `json:"sectors"`
	Stage         int              `json:"stage"`
	Geography     string           `json:"geography"`
	Features      scoring.Features `json:"features"`
}

// CreateStartup registers a startup. It is scored only when features are
// supplied.
// POST /api/v1/admin/startups
func (h *AdminHandler) CreateStartup(w http.ResponseWriter, r *http.Request) {
	var req createStartupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	st := &store.Startup{
		Name:          req.Name,
		PublicProfile: req.PublicProfile,
		Sectors:       req.Sectors,
		Stage:         req.Stage,
		Geography:     req.Geography,
	}
	if err := h.store.CreateStartup(r.Context(), st); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(req.Features) > 0 {
		scored, err := h.rescore.Score(r.Context(), st.ID, req.Features)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		st = scored
	}
	writeJSON(w, http.StatusCreated, st)
}

type scoreRequest struct {
	Features scoring.Features `json:"features"`
}

// Score recomputes a startup's score with the active weights. Without
// features in the body the enrichment pipeline is asked for them.
// POST /api/v1/admin/startups/{id}/score
func (h *AdminHandler) Score(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	st, err := h.rescore.Score(r.Context(), id, req.Features)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Score)
}

type signalsRequest struct {
	Signals map[scoring.Signal]rescore.SignalUpdate `json:"signals"`
}

// Signals sets or clears psychological signals.
// PUT /api/v1/admin/startups/{id}/signals
func (h *AdminHandler) Signals(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req signalsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Signals) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "signals is required"})
		return
	}
	st, err := h.rescore.UpdateSignals(r.Context(), id, req.Signals)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals": st.Signals,
		"score":   st.Score,
	})
}

type createInvestorRequest struct {
	Name          string `json:"name"`
	Firm          string `json:"firm"`
	Type          string `json:"type"`
	Tier          int    `json:"tier"`
	PublicProfile bool   `json:"public_profile"`
}

// CreateInvestor registers an investor.
// POST /api/v1/admin/investors
func (h *AdminHandler) CreateInvestor(w http.ResponseWriter, r *http.Request) {
	var req createInvestorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	inv := &store.Investor{
		Name:          req.Name,
		Firm:          req.Firm,
		Type:          req.Type,
		Tier:          req.Tier,
		PublicProfile: req.PublicProfile,
	}
	if err := h.store.CreateInvestor(r.Context(), inv); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

type createMatchRequest struct {
	StartupID  uuid.UUID `json:"startup_id"`
	InvestorID uuid.UUID `json:"investor_id"`
	Score      float64   `json:"match_score"`
}

// CreateMatch records a match. The match also counts as a discovery of the
// startup for k-anonymity bucketing.
// POST /api/v1/admin/matches
func (h *AdminHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.store.GetStartup(r.Context(), req.StartupID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if st == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "startup not found"})
		return
	}

	id, err := h.store.CreateMatch(r.Context(), store.NewMatch{
		StartupID:  req.StartupID,
		InvestorID: req.InvestorID,
		Score:      req.Score,
		Discovery: &store.DiscoveryEvent{
			Geography: st.Geography,
			Sector:    privacy.PrimarySector(st.Sectors),
			Stage:     st.Stage,
		},
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// The cached gate predates this match; drop it so the next feed read
	// rebuilds it with the new bucket counted.
	if err := h.guard.Invalidate(r.Context()); err != nil {
		h.logger.Warn("feed gate not invalidated", "match_id", id, "error", err)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"match_id": id.String()})
}

// KAnonReport computes a k-anonymity report on demand without publishing it.
// GET /api/v1/admin/kanon/report?window_days=
func (h *AdminHandler) KAnonReport(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("window_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 366 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid window_days"})
			return
		}
		days = n
	}
	report, err := h.guard.Compute(r.Context(), days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RunGuard triggers a publishing k-anonymity run.
// POST /api/v1/admin/kanon/run
func (h *AdminHandler) RunGuard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report, err := h.guard.RunKAnon(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counts":      report.Counts,
		"computed_at": report.ComputedAt,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
