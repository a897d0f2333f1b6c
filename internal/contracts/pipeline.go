package contracts

import "time"

// Pipeline Stage 정의 (SSOT)
// 모든 로그와 결과 메타데이터에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   COLLECT → MERGE → PROCESS(n) → DONE

// Stage represents a pipeline run state
type Stage string

const (
	// StageCollect 소스별 병렬 수집
	// 위치: internal/pipeline/collect.go
	StageCollect Stage = "COLLECT"

	// StageMerge 소스 결과를 종목별 PriceRecord 하나로 병합
	StageMerge Stage = "MERGE"

	// StageProcess 설정된 순서대로 프로세서 실행
	StageProcess Stage = "PROCESS"

	// StageDone 결과 패키징 완료
	StageDone Stage = "DONE"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{StageCollect, StageMerge, StageProcess, StageDone}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageResult records one step of a pipeline run
type StageResult struct {
	Stage       Stage                  `json:"stage"`
	Name        string                 `json:"name"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ProcessingResult is the packaged output of one pipeline run
// ⭐ SSOT: 실행당 한 번 생성되고 이후 읽기 전용
type ProcessingResult struct {
	RunID          string                  `json:"run_id"`
	Data           map[string]*PriceRecord `json:"data"`
	Metadata       map[string]interface{}  `json:"metadata"`
	ProcessingTime time.Duration           `json:"processing_time"`
	Success        bool                    `json:"success"`
	Errors         []string                `json:"errors"`
	Stages         []StageResult           `json:"stages"`
}

// Symbols returns the symbols that carry at least one bar
func (p *ProcessingResult) Symbols() []string {
	out := make([]string, 0, len(p.Data))
	for symbol, record := range p.Data {
		if record != nil && record.Len() > 0 {
			out = append(out, symbol)
		}
	}
	return out
}

// HasErrors reports whether any stage logged an error
func (p *ProcessingResult) HasErrors() bool {
	return len(p.Errors) > 0
}
