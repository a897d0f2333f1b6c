package aggregate

import (
	"sort"

	"github.com/wonny/finfetch/internal/contracts"
)

// Merge fans in per-source results into one record per symbol
// ⭐ SSOT: 소스 순서(order)대로 행을 이어 붙이고 각 행에 출처를 기록
// 날짜 중복 해소는 Aggregator 몫
func Merge(buckets map[string]map[string]*contracts.PriceRecord, order []string) map[string]*contracts.PriceRecord {
	merged := make(map[string]*contracts.PriceRecord)

	for _, source := range sourceOrder(buckets, order) {
		for symbol, record := range buckets[source] {
			if record == nil || record.Len() == 0 {
				continue
			}

			key := contracts.NormalizeSymbol(symbol)
			target, ok := merged[key]
			if !ok {
				target = contracts.NewPriceRecord(key, "")
				target.LastUpdated = record.LastUpdated
				merged[key] = target
			}

			for _, b := range record.Bars {
				if b.Source == "" {
					b.Source = source
				}
				target.Bars = append(target.Bars, b)
			}
			target.AddSource(source)
			for k, v := range record.Metadata {
				target.SetMeta(k, v)
			}
			if record.LastUpdated.After(target.LastUpdated) {
				target.LastUpdated = record.LastUpdated
			}
		}
	}

	return merged
}

// sourceOrder order에 있는 소스 먼저, 나머지는 이름순
func sourceOrder(buckets map[string]map[string]*contracts.PriceRecord, order []string) []string {
	out := make([]string, 0, len(buckets))
	seen := make(map[string]bool, len(buckets))
	for _, s := range order {
		if _, ok := buckets[s]; ok && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}

	rest := make([]string, 0)
	for s := range buckets {
		if !seen[s] {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
