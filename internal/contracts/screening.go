package contracts

// ScreeningRow is one symbol's flattened screening metrics
// 표/CSV/XLSX 출력의 한 행 (퍼센트 값은 이미 % 단위)
type ScreeningRow struct {
	Symbol           string  `json:"symbol"`
	CurrentPrice     float64 `json:"current_price"`
	AnnualizedReturn float64 `json:"annualized_return"`
	TotalReturn      float64 `json:"total_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	Volatility       float64 `json:"volatility"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	PercentFromHigh  float64 `json:"percent_from_high"`
	PercentFromLow   float64 `json:"percent_from_low"`
	RSI              float64 `json:"rsi"`
	VolumeRatio      float64 `json:"volume_ratio"`
	High52w          float64 `json:"high_52w"`
	Low52w           float64 `json:"low_52w"`
	SMA20            float64 `json:"sma_20"`
	SMA50            float64 `json:"sma_50"`
	DataPoints       int     `json:"data_points"`
}

// OpportunityRow is one entry of the opportunity screening table
type OpportunityRow struct {
	Symbol           string  `json:"symbol"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	PctFrom52wHigh   float64 `json:"pct_from_52w_high"`
}

// RankedRow is an OpportunityRow with its composite score and rank
type RankedRow struct {
	OpportunityRow
	NormSharpe float64 `json:"norm_sharpe"`
	NormReturn float64 `json:"norm_return"`
	NormHigh   float64 `json:"norm_pct_from_high"`
	Score      float64 `json:"opportunity_score"`
	Rank       int     `json:"rank"` // 1-based
}

// IsTopRanked checks if the row is in the top n
func (r *RankedRow) IsTopRanked(n int) bool {
	return r.Rank <= n && r.Rank > 0
}
