package model

// MarketSnapshot holds the year-end market view the engine decides on.
// Index levels are nominal; Inflation and InterestRate are percentages.
type MarketSnapshot struct {
	EndeVJ          float64 `yaml:"ende_vj" json:"ende_vj"`
	EndeVJ1         float64 `yaml:"ende_vj_1" json:"ende_vj_1"`
	EndeVJ2         float64 `yaml:"ende_vj_2" json:"ende_vj_2"`
	EndeVJ3         float64 `yaml:"ende_vj_3" json:"ende_vj_3"`
	ATH             float64 `yaml:"ath" json:"ath"`
	YearsSinceATH   float64 `yaml:"years_since_ath" json:"years_since_ath"`
	CapeRatio       float64 `yaml:"cape_ratio" json:"cape_ratio"`
	MarketCapeRatio float64 `yaml:"market_cape_ratio" json:"market_cape_ratio"`
	Inflation       float64 `yaml:"inflation" json:"inflation"`
	InterestRate    float64 `yaml:"interest_rate" json:"interest_rate"`
}

// Cape resolves the CAPE ratio, accepting either field name.
func (m MarketSnapshot) Cape() float64 {
	if m.CapeRatio > 0 {
		return m.CapeRatio
	}
	return m.MarketCapeRatio
}

// Roll shifts the price window by one year after the index moved by ret
// (a fraction) and tracks the all-time high.
func (m MarketSnapshot) Roll(ret float64) MarketSnapshot {
	next := m
	next.EndeVJ3 = m.EndeVJ2
	next.EndeVJ2 = m.EndeVJ1
	next.EndeVJ1 = m.EndeVJ
	next.EndeVJ = m.EndeVJ * (1 + ret)
	if next.EndeVJ >= m.ATH {
		next.ATH = next.EndeVJ
		next.YearsSinceATH = 0
	} else {
		next.YearsSinceATH = m.YearsSinceATH + 1
	}
	return next
}

// YearReturns is one year of sampled market data. Returns are fractions,
// Inflation and InterestRate percentages.
type YearReturns struct {
	Year         int
	EquityReturn float64
	GoldReturn   float64
	Inflation    float64
	InterestRate float64
	WageGrowth   float64
	Cape         float64
	Regime       string
}
