package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wonny/finfetch/internal/contracts"
)

// Snapshot is the JSON file written by collect and read by analyze
// 처리 메타데이터는 제외하고 정제된 데이터만 보관
type Snapshot struct {
	RunID     string                            `json:"run_id"`
	CreatedAt time.Time                         `json:"created_at"`
	Symbols   []string                          `json:"symbols"`
	Sources   []string                          `json:"sources"`
	Errors    []string                          `json:"errors"`
	Data      map[string]*contracts.PriceRecord `json:"data"`
}

// NewSnapshot captures the data of a run
func NewSnapshot(result *contracts.ProcessingResult) *Snapshot {
	symbols := result.Symbols()
	sort.Strings(symbols)

	srcs, _ := result.Metadata["sources"].([]string)
	return &Snapshot{
		RunID:     result.RunID,
		CreatedAt: time.Now().UTC(),
		Symbols:   symbols,
		Sources:   srcs,
		Errors:    result.Errors,
		Data:      result.Data,
	}
}

// Save writes the snapshot as indented JSON, creating parent directories
func (s *Snapshot) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSnapshot reads a snapshot written by Save
// 데이터가 비어 있으면 ErrNoData
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes snapshot JSON (API 요청 본문에도 사용)
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(s.Data) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no records", contracts.ErrNoData)
	}
	for symbol, record := range s.Data {
		if record == nil {
			delete(s.Data, symbol)
			continue
		}
		if record.Symbol == "" {
			record.Symbol = symbol
		}
	}
	return &s, nil
}
