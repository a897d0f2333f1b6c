package contracts

import (
	"context"
	"time"
)

// Source fetches raw OHLCV rows from one vendor
// ⭐ SSOT: 벤더 어댑터 인터페이스
// 종목별 실패는 어댑터 내부에서 로깅 후 결과에서 제외
type Source interface {
	Name() string
	Enabled() bool
	Validate() error
	Collect(ctx context.Context, symbols []string, from, to time.Time) (map[string]*PriceRecord, error)
}

// Cleaner repairs one record
// ⭐ SSOT: 실패 시 원본을 그대로 반환 (fail-open)
type Cleaner interface {
	Clean(record *PriceRecord) *PriceRecord
}

// StageOutput is what a processor hands to the next stage
// Metadata는 결과의 metadata[processor name]에 저장됨
type StageOutput struct {
	Data     map[string]*PriceRecord
	Metadata map[string]interface{}
}

// Processor is one step of the sequential processing chain
// ⭐ SSOT: 클리너, 지표, 스크리닝, 리스크/성과/포트폴리오 분석 공용 인터페이스
type Processor interface {
	Name() string
	ValidateConfig() bool
	Process(ctx context.Context, data map[string]*PriceRecord) (*StageOutput, error)
}
