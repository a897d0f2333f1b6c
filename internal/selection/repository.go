package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/redis"
)

// Repository caches screening and ranking results
// ⭐ SSOT: Selection 결과 캐시 저장/조회는 여기서만
// redis가 비활성이면 저장은 무시되고 조회는 ErrNoData
type Repository struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewRepository creates a new selection repository
func NewRepository(cache *redis.Cache) *Repository {
	return &Repository{cache: cache, ttl: redis.TTLMedium}
}

// WithTTL overrides the cache TTL
func (r *Repository) WithTTL(ttl time.Duration) *Repository {
	r.ttl = ttl
	return r
}

// ScreeningResult represents one screening run
type ScreeningResult struct {
	Date        time.Time                  `json:"date"`
	Rows        []contracts.OpportunityRow `json:"rows"`
	Skipped     map[string]int             `json:"skipped"`
	TotalInput  int                        `json:"total_input"`
	TotalPassed int                        `json:"total_passed"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// SaveScreeningResult stores a screening result for a date
func (r *Repository) SaveScreeningResult(ctx context.Context, result *ScreeningResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	if err := r.cache.Set(ctx, screeningKey(result.Date), result, r.ttl); err != nil {
		return fmt.Errorf("failed to save screening result: %w", err)
	}
	return nil
}

// GetScreeningResult retrieves screening result for a date
func (r *Repository) GetScreeningResult(ctx context.Context, date time.Time) (*ScreeningResult, error) {
	var result ScreeningResult
	found, err := r.cache.Get(ctx, screeningKey(date), &result)
	if err != nil {
		return nil, fmt.Errorf("failed to get screening result: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no screening result for date %s", contracts.ErrNoData, date.Format("2006-01-02"))
	}
	return &result, nil
}

// SaveRankingResults stores ranking results for a date
func (r *Repository) SaveRankingResults(ctx context.Context, date time.Time, ranked []contracts.RankedRow) error {
	if err := r.cache.Set(ctx, rankingKey(date), ranked, r.ttl); err != nil {
		return fmt.Errorf("failed to save ranking results: %w", err)
	}
	return nil
}

// GetRankingResults retrieves the top limit ranking results for a date
// limit <= 0 이면 전체 반환
func (r *Repository) GetRankingResults(ctx context.Context, date time.Time, limit int) ([]contracts.RankedRow, error) {
	var ranked []contracts.RankedRow
	found, err := r.cache.Get(ctx, rankingKey(date), &ranked)
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking results: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no ranking results for date %s", contracts.ErrNoData, date.Format("2006-01-02"))
	}

	if limit > 0 {
		top := make([]contracts.RankedRow, 0, limit)
		for i := range ranked {
			if ranked[i].IsTopRanked(limit) {
				top = append(top, ranked[i])
			}
		}
		ranked = top
	}
	return ranked, nil
}

func screeningKey(date time.Time) string {
	return "selection:screening:" + date.Format("20060102")
}

func rankingKey(date time.Time) string {
	return "selection:ranking:" + date.Format("20060102")
}
