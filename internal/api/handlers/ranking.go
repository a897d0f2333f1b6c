package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/selection"
	"github.com/wonny/finfetch/pkg/logger"
)

// RankingHandler serves cached screening and ranking results
// ⭐ SSOT: 랭킹 API 핸들러는 이 구조체에서만
type RankingHandler struct {
	repo   *selection.Repository
	logger *logger.Logger
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(repo *selection.Repository, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		repo:   repo,
		logger: log,
	}
}

// GetRanking returns the cached ranking for a date
// GET /api/ranking?date=YYYY-MM-DD&limit=20
func (h *RankingHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	date, ok := dateParam(w, q.Get("date"))
	if !ok {
		return
	}
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected non-negative integer)")
		return
	}

	ranked, err := h.repo.GetRankingResults(ctx, date, limit)
	if err != nil {
		h.respondCacheError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"count":   len(ranked),
		"ranking": ranked,
	})
}

// GetScreening returns the cached screening result for a date
// GET /api/screening?date=YYYY-MM-DD
func (h *RankingHandler) GetScreening(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	result, err := h.repo.GetScreeningResult(r.Context(), date)
	if err != nil {
		h.respondCacheError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *RankingHandler) respondCacheError(w http.ResponseWriter, err error) {
	if errors.Is(err, contracts.ErrNoData) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.WithError(err).Error("Failed to read cached results")
	respondError(w, http.StatusInternalServerError, "Failed to read cached results")
}

// dateParam parses YYYY-MM-DD (기본값: 오늘 UTC)
func dateParam(w http.ResponseWriter, s string) (time.Time, bool) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), true
	}
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return time.Time{}, false
	}
	return date, true
}
