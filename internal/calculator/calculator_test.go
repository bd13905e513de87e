package calculator

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

func sortedQuantile(values []float64, q float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	pos := float64(len(s)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}

func TestQuantile_MatchesSortedReference(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for n := 1; n <= 60; n += 7 {
		values := make([]float64, n)
		for i := range values {
			values[i] = math.Round(r.NormFloat64()*1000) / 10
		}
		for _, q := range []float64{0, 0.1, 0.25, 0.5, 0.9, 1} {
			got, err := Quantile(values, q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := sortedQuantile(values, q)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("n=%d q=%.2f: expected %.4f, got %.4f", n, q, want, got)
			}
		}
	}
}

func TestQuantile_DoesNotMutateInput(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	if _, err := Quantile(values, 0.5); err != nil {
		t.Fatal(err)
	}
	if values[0] != 5 || values[4] != 3 {
		t.Errorf("input was reordered: %v", values)
	}
}

func TestQuantile_Empty(t *testing.T) {
	if _, err := Quantile(nil, 0.5); err == nil {
		t.Error("expected error for empty sample")
	}
	if got := QuantileOr(nil, 0.5, 0); got != 0 {
		t.Errorf("expected fallback 0, got %.2f", got)
	}
}

func TestMaxDrawdownPct(t *testing.T) {
	got, err := MaxDrawdownPct([]float64{100, 120, 60, 90, 130})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("expected 50%%, got %.2f", got)
	}
	if got := RecoveryYears([]float64{100, 120, 60, 90, 130}); got != 2 {
		t.Errorf("expected 2 recovery years, got %d", got)
	}
	if got := RecoveryYears([]float64{100, 50, 60}); got != -1 {
		t.Errorf("expected -1 for no recovery, got %d", got)
	}
}

func TestVolatilityPct(t *testing.T) {
	if _, err := VolatilityPct([]float64{100, 110}); err == nil {
		t.Error("expected error for a single return")
	}
	got, err := VolatilityPct([]float64{100, 110, 99})
	if err != nil {
		t.Fatal(err)
	}
	// returns +10% and -10%: sample stdev = sqrt(0.02) = 14.14%
	if math.Abs(got-14.1421) > 0.001 {
		t.Errorf("expected 14.14, got %.4f", got)
	}
}

func TestAnnuityRate(t *testing.T) {
	got, err := AnnuityRate(0.0005, 20)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.05 {
		t.Errorf("expected 1/n fallback 0.05, got %.5f", got)
	}

	// amortisation identity: present value of n payments equals 1
	r, n := 0.03, 25.0
	rate, _ := AnnuityRate(r, n)
	pv := 0.0
	for k := 1; k <= int(n); k++ {
		pv += rate / math.Pow(1+r, float64(k))
	}
	if math.Abs(pv-1) > 1e-9 {
		t.Errorf("expected present value 1, got %.9f", pv)
	}

	if _, err := AnnuityRate(0.03, 0); err == nil {
		t.Error("expected error for zero horizon")
	}
}

func TestWindowLowAndClamp(t *testing.T) {
	if got := WindowLow(0, 80, 60, 90); got != 60 {
		t.Errorf("expected 60, got %.0f", got)
	}
	if got := WindowLow(0, -1); got != 0 {
		t.Errorf("expected 0, got %.0f", got)
	}
	if got := Clamp(math.NaN(), 0, 1); got != 0 {
		t.Errorf("expected NaN to clamp to 0, got %.2f", got)
	}
}

func TestRoundToStep(t *testing.T) {
	cases := []struct {
		amount, step float64
		up           bool
		want         float64
	}{
		{12345, 5000, true, 15000},
		{12345, 5000, false, 10000},
		{15000, 5000, true, 15000},
		{0.3, 0.1, true, 0.3},
		{3503.58, 250, false, 3500},
		{-10, 100, true, 0},
		{math.NaN(), 100, false, 0},
		{1234, 0, true, 1234},
	}
	for i, c := range cases {
		var got float64
		if c.up {
			got = RoundUp(c.amount, c.step)
		} else {
			got = RoundDown(c.amount, c.step)
		}
		if got != c.want {
			t.Errorf("case %d: expected %.2f, got %.2f", i, c.want, got)
		}
	}
	if got := Cents(10.005); got != 10.01 {
		t.Errorf("expected 10.01, got %.4f", got)
	}
}
