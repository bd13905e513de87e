package regime

import (
	"testing"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
)

func classify(m model.MarketSnapshot) model.MarketRegime {
	return NewClassifier(config.DefaultEngine()).Classify(m)
}

func TestClassify_Buckets(t *testing.T) {
	tests := []struct {
		name    string
		m       model.MarketSnapshot
		key     model.RegimeKey
		profile model.ProfileKey
	}{
		{"peak hot", model.MarketSnapshot{EndeVJ: 120, EndeVJ1: 100, ATH: 120}, model.RegimePeakHot, model.ProfilePeak},
		{"peak stable", model.MarketSnapshot{EndeVJ: 105, EndeVJ1: 100, ATH: 105}, model.RegimePeakStable, model.ProfileHotNeutral},
		{"deep bear", model.MarketSnapshot{EndeVJ: 70, EndeVJ1: 90, EndeVJ2: 100, EndeVJ3: 95, ATH: 100, YearsSinceATH: 2}, model.RegimeBearDeep, model.ProfileBear},
		{"recovery", model.MarketSnapshot{EndeVJ: 88, EndeVJ1: 78, EndeVJ2: 85, EndeVJ3: 100, ATH: 100, YearsSinceATH: 2}, model.RegimeRecovery, model.ProfileRecovery},
		{"young correction", model.MarketSnapshot{EndeVJ: 92, EndeVJ1: 95, ATH: 100, YearsSinceATH: 0.5}, model.RegimeCorrYoung, model.ProfileRecovery},
		{"sideways", model.MarketSnapshot{EndeVJ: 92, EndeVJ1: 95, ATH: 100, YearsSinceATH: 2}, model.RegimeSideLong, model.ProfileHotNeutral},
		{"rally in bear", model.MarketSnapshot{EndeVJ: 75, EndeVJ1: 60, EndeVJ2: 80, EndeVJ3: 100, ATH: 100, YearsSinceATH: 3}, model.RegimeRecoveryInBear, model.ProfileRecoveryInBear},
		{"degenerate", model.MarketSnapshot{}, model.RegimeNeutral, model.ProfileHotNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classify(tt.m)
			if r.Key != tt.key {
				t.Errorf("expected %s, got %s", tt.key, r.Key)
			}
			if r.Profile != tt.profile {
				t.Errorf("expected profile %s, got %s", tt.profile, r.Profile)
			}
			if r.Label == "" {
				t.Error("expected a label")
			}
		})
	}
}

func TestClassify_StagflationOverridesProfile(t *testing.T) {
	r := classify(model.MarketSnapshot{EndeVJ: 101, EndeVJ1: 100, ATH: 101, Inflation: 6})
	if !r.Stagflation {
		t.Fatal("expected stagflation flag")
	}
	if r.Profile != model.ProfileStagflation {
		t.Errorf("expected stagflation profile, got %s", r.Profile)
	}
	if r.Key != model.RegimePeakStable {
		t.Errorf("stagflation must not change the key, got %s", r.Key)
	}
}

func TestClassify_Cape(t *testing.T) {
	tests := []struct {
		cape   float64
		signal string
		ret    float64
	}{
		{0, model.ValuationFair, 0.07},
		{12, model.ValuationUndervalued, 0.08},
		{31, model.ValuationOvervalued, 0.05},
		{40, model.ValuationExtremeOvervalued, 0.04},
	}
	for _, tt := range tests {
		r := classify(model.MarketSnapshot{EndeVJ: 100, EndeVJ1: 100, ATH: 100, CapeRatio: tt.cape})
		if r.ValuationSignal != tt.signal {
			t.Errorf("cape %.0f: expected %s, got %s", tt.cape, tt.signal, r.ValuationSignal)
		}
		if r.ExpectedReturnCape != tt.ret {
			t.Errorf("cape %.0f: expected %.2f, got %.2f", tt.cape, tt.ret, r.ExpectedReturnCape)
		}
	}
	if r := classify(model.MarketSnapshot{EndeVJ: 100, ATH: 100}); r.CapeRatio != 20 {
		t.Errorf("expected default CAPE 20, got %.1f", r.CapeRatio)
	}
}

func TestClassify_CapeAliasAndDeterminism(t *testing.T) {
	a := classify(model.MarketSnapshot{EndeVJ: 80, EndeVJ1: 90, ATH: 100, YearsSinceATH: 1, CapeRatio: 32})
	b := classify(model.MarketSnapshot{EndeVJ: 80, EndeVJ1: 90, ATH: 100, YearsSinceATH: 1, MarketCapeRatio: 32})
	if a.Key != b.Key || a.ExpectedReturnCape != b.ExpectedReturnCape {
		t.Errorf("alias mismatch: %+v vs %+v", a, b)
	}
	c := classify(model.MarketSnapshot{EndeVJ: 80, EndeVJ1: 90, ATH: 100, YearsSinceATH: 1, CapeRatio: 32})
	if a.Key != c.Key || a.ATHGapPct != c.ATHGapPct || a.SeiATH != c.SeiATH {
		t.Error("classification is not deterministic")
	}
}
