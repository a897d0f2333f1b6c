package selection

import (
	"context"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/logger"
)

// Processor runs screening and ranking as a pipeline stage
// 메타데이터: "screening_table", "ranking", "skipped"
type Processor struct {
	screener *Screener
	ranker   *Ranker
	repo     *Repository
	logger   *logger.Logger
}

// NewProcessor creates a screening processor
func NewProcessor(config ScreenerConfig, log *logger.Logger) *Processor {
	return &Processor{
		screener: NewScreener(config, log),
		ranker:   NewRanker(config.Weights, log),
		logger:   log,
	}
}

// WithRepository caches each run's results
func (p *Processor) WithRepository(repo *Repository) *Processor {
	p.repo = repo
	return p
}

// Name returns the processor name
func (p *Processor) Name() string {
	return "stock_screening"
}

// ValidateConfig checks screening parameters
func (p *Processor) ValidateConfig() bool {
	if err := p.screener.config.Validate(); err != nil {
		p.logger.WithError(err).Error("Invalid screening configuration")
		return false
	}
	return true
}

// Process screens and ranks every symbol; data passes through unchanged
func (p *Processor) Process(ctx context.Context, data map[string]*contracts.PriceRecord) (*contracts.StageOutput, error) {
	rows, skipped, err := p.screener.Screen(ctx, data)
	if err != nil {
		return nil, err
	}

	ranked, err := p.ranker.Rank(ctx, rows)
	if err != nil {
		return nil, err
	}

	if p.repo != nil {
		p.cache(ctx, data, rows, skipped, ranked)
	}

	return &contracts.StageOutput{
		Data: data,
		Metadata: map[string]interface{}{
			"screening_table": rows,
			"ranking":         ranked,
			"skipped":         skipped,
		},
	}, nil
}

// cache stores the run; failures are logged only
func (p *Processor) cache(ctx context.Context, data map[string]*contracts.PriceRecord, rows []contracts.OpportunityRow, skipped map[string]int, ranked []contracts.RankedRow) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	result := &ScreeningResult{
		Date:        today,
		Rows:        rows,
		Skipped:     skipped,
		TotalInput:  len(data),
		TotalPassed: len(rows),
	}
	if err := p.repo.SaveScreeningResult(ctx, result); err != nil {
		p.logger.WithError(err).Warn("Failed to cache screening result")
	}
	if err := p.repo.SaveRankingResults(ctx, today, ranked); err != nil {
		p.logger.WithError(err).Warn("Failed to cache ranking results")
	}
}
