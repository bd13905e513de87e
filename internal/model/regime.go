package model

// RegimeKey is the market scenario tag produced by the classifier.
type RegimeKey string

const (
	RegimePeakHot        RegimeKey = "peak_hot"
	RegimePeakStable     RegimeKey = "peak_stable"
	RegimeSideLong       RegimeKey = "side_long"
	RegimeCorrYoung      RegimeKey = "corr_young"
	RegimeRecovery       RegimeKey = "recovery"
	RegimeBearDeep       RegimeKey = "bear_deep"
	RegimeRecoveryInBear RegimeKey = "recovery_in_bear"
	RegimeNeutral        RegimeKey = "neutral"
)

// IsPeak reports whether the key belongs to the peak/sideways family.
func (k RegimeKey) IsPeak() bool {
	return k == RegimePeakHot || k == RegimePeakStable || k == RegimeSideLong
}

// IsBearProxy reports whether the key is treated as bear market for refills.
func (k RegimeKey) IsBearProxy() bool {
	return k == RegimeBearDeep || k == RegimeRecoveryInBear
}

// ProfileKey selects the runway profile of a regime.
type ProfileKey string

const (
	ProfilePeak           ProfileKey = "peak"
	ProfileHotNeutral     ProfileKey = "hot_neutral"
	ProfileBear           ProfileKey = "bear"
	ProfileRecovery       ProfileKey = "recovery"
	ProfileRecoveryInBear ProfileKey = "recovery_in_bear"
	ProfileStagflation    ProfileKey = "stagflation"
)

// Valuation signals derived from CAPE.
const (
	ValuationUndervalued       = "undervalued"
	ValuationFair              = "fair"
	ValuationOvervalued        = "overvalued"
	ValuationExtremeOvervalued = "extreme_overvalued"
)

// MarketRegime is the classifier output.
type MarketRegime struct {
	Key                RegimeKey
	Profile            ProfileKey
	Label              string
	Stagflation        bool
	ValuationSignal    string
	CapeRatio          float64
	ExpectedReturnCape float64
	ATHGapPct          float64
	Perf1YPct          float64
	SeiATH             float64
	RallyFromLowPct    float64
	Reasons            []string
}
