package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/internal/options"
	"github.com/wonny/finfetch/internal/pipeline"
	"github.com/wonny/finfetch/internal/report"
	"github.com/wonny/finfetch/pkg/logger"
)

// maxBodyBytes analyze 요청 본문 최대 크기
const maxBodyBytes = 32 << 20

// SourceLister lists known source names
type SourceLister interface {
	Names() []string
}

// DataHandler handles collection, screening and analysis endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	orchestrator *pipeline.Orchestrator
	sources      SourceLister
	writer       *report.Writer
	logger       *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(orch *pipeline.Orchestrator, sources SourceLister, log *logger.Logger) *DataHandler {
	return &DataHandler{
		orchestrator: orch,
		sources:      sources,
		writer:       report.NewWriter(orch.Options().Output.DecimalPlaces),
		logger:       log,
	}
}

// GetSources returns the known source names
// GET /api/sources
func (h *DataHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sources": h.sources.Names(),
	})
}

// ScreenResponse represents a screening response
type ScreenResponse struct {
	RunID   string                   `json:"run_id"`
	Success bool                     `json:"success"`
	Rows    []map[string]interface{} `json:"rows"`
	Ranking []contracts.RankedRow    `json:"ranking,omitempty"`
	Skipped map[string]string        `json:"skipped"`
	Errors  []string                 `json:"errors"`
}

// Screen runs the pipeline and returns the screening table
// GET /api/screen?symbols=AAPL,MSFT&days=365&benchmark=SPY&format=json|csv
func (h *DataHandler) Screen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	symbols := splitList(q.Get("symbols"))
	if len(symbols) == 0 {
		respondError(w, http.StatusBadRequest, "Query parameter 'symbols' is required")
		return
	}

	days, err := intParam(q.Get("days"), h.orchestrator.Options().Pipeline.Days)
	if err != nil || days < 2 {
		respondError(w, http.StatusBadRequest, "Invalid 'days' (expected integer >= 2)")
		return
	}

	format := q.Get("format")
	if format == "" {
		format = string(report.FormatJSON)
	}
	if format != string(report.FormatJSON) && format != string(report.FormatCSV) {
		respondError(w, http.StatusBadRequest, "Invalid 'format' (valid: json, csv)")
		return
	}

	cfg := h.orchestrator.Options().Processors.FinancialMetrics.Config
	if b := q.Get("benchmark"); b != "" {
		cfg.Benchmark = b
	}

	req := pipeline.NewRequest(symbols, days, time.Now())
	req.Sources = splitList(q.Get("sources"))

	h.logger.WithFields(map[string]interface{}{
		"symbols":   symbols,
		"days":      days,
		"benchmark": cfg.Benchmark,
	}).Info("Screening triggered")

	res, err := h.orchestrator.Screen(ctx, req, cfg)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	if format == string(report.FormatCSV) {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := h.writer.WriteCSV(w, res.Rows); err != nil {
			h.logger.WithError(err).Error("Failed to write CSV response")
		}
		return
	}

	respondJSON(w, http.StatusOK, ScreenResponse{
		RunID:   res.Result.RunID,
		Success: res.Result.Success,
		Rows:    h.writer.Records(res.Rows),
		Ranking: pipeline.Ranking(res.Result),
		Skipped: res.Skipped,
		Errors:  res.Result.Errors,
	})
}

// CollectRequest represents a data collection request
type CollectRequest struct {
	Symbols []string `json:"symbols"`
	Sources []string `json:"sources"`
	Days    int      `json:"days"` // from/to가 없을 때 사용
	From    string   `json:"from"` // Optional: YYYY-MM-DD
	To      string   `json:"to"`   // Optional: YYYY-MM-DD
}

// Collect collects and cleans data, returning a snapshot
// POST /api/data/collect
func (h *DataHandler) Collect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body CollectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	days := body.Days
	if days == 0 {
		days = h.orchestrator.Options().Pipeline.Days
	}
	req := pipeline.NewRequest(body.Symbols, days, time.Now())
	req.Sources = body.Sources
	req.Order = []string{options.ProcessorCleaner}

	var err error
	if body.From != "" {
		if req.From, err = time.Parse("2006-01-02", body.From); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
			return
		}
	}
	if body.To != "" {
		if req.To, err = time.Parse("2006-01-02", body.To); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
			return
		}
	}

	result, err := h.orchestrator.Run(ctx, req)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, pipeline.NewSnapshot(result))
}

// Analyze runs one analyzer over a posted snapshot
// POST /api/analyze/{kind}  (kind: performance, risk, portfolio)
func (h *DataHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind := mux.Vars(r)["kind"]

	name, err := pipeline.AnalysisProcessor(kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	snapshot, err := pipeline.ParseSnapshot(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orchestrator.Analyze(ctx, snapshot.Data, name)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"analysis": kind,
		"symbols":  len(snapshot.Data),
		"result":   result,
	})
}

// respondRunError maps pipeline errors onto status codes
func (h *DataHandler) respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrInvalidConfig), errors.Is(err, contracts.ErrSourceDisabled):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contracts.ErrInsufficientData), errors.Is(err, contracts.ErrNoData):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.WithError(err).Error("Pipeline request failed")
		respondError(w, http.StatusInternalServerError, "Pipeline run failed")
	}
}

// Helper functions

func splitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
