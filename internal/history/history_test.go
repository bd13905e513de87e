package history

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"RetireSentinel/internal/model"
)

func TestDefaultDataset(t *testing.T) {
	ds, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Years) != 55 {
		t.Fatalf("expected 55 years, got %d", len(ds.Years))
	}

	first := ds.Years[0]
	if first.Year != 1970 {
		t.Errorf("expected first year 1970, got %d", first.Year)
	}
	if math.Abs(first.EquityReturn-0.1/60.8) > 1e-12 {
		t.Errorf("expected return %.6f, got %.6f", 0.1/60.8, first.EquityReturn)
	}
	// macro data comes from the previous row
	if first.Inflation != 1.9 || first.InterestRate != 6 || first.WageGrowth != 9.8 {
		t.Errorf("expected 1969 macro data, got %+v", first)
	}
	if math.Abs(first.GoldReturn+0.085) > 1e-12 {
		t.Errorf("expected gold -0.085, got %.4f", first.GoldReturn)
	}

	want := map[int]string{1970: Sideways, 1971: Bull, 1974: Stagflation, 2002: Bear, 2008: Bear, 2009: Bull}
	for year, regime := range want {
		i := ds.Index(year)
		if i < 0 {
			t.Fatalf("year %d missing", year)
		}
		if got := ds.Years[i].Regime; got != regime {
			t.Errorf("%d: expected %s, got %s", year, regime, got)
		}
	}

	sizes := map[string]int{Bull: 23, Sideways: 19, Stagflation: 7, Bear: 6}
	for r, n := range sizes {
		if len(ds.Pools[r]) != n {
			t.Errorf("expected %d %s years, got %d", n, r, len(ds.Pools[r]))
		}
	}
}

func TestTransitions(t *testing.T) {
	ds, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := 0
	for _, from := range Regimes {
		for _, to := range Regimes {
			total += ds.Transitions[from][to]
		}
	}
	if total != len(ds.Years)-1 {
		t.Errorf("expected %d transitions, got %d", len(ds.Years)-1, total)
	}
	if got := ds.Transitions[Bear][Bull]; got != 3 {
		t.Errorf("expected 3 bear->bull transitions, got %d", got)
	}

	// bear row: bull 3, bear 2, sideways 1, stagflation 0
	cases := []struct {
		u    float64
		want string
	}{
		{0, Bull},
		{0.49, Bull},
		{0.5, Bear},
		{0.8, Bear},
		{0.9, Sideways},
	}
	for _, c := range cases {
		if got := ds.Next(Bear, c.u); got != c.want {
			t.Errorf("u=%.2f: expected %s, got %s", c.u, c.want, got)
		}
	}

	empty := &Dataset{Transitions: map[string]map[string]int{}}
	if got := empty.Next(Bear, 0.3); got != Bear {
		t.Errorf("expected regime to persist without data, got %s", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		ret, infl float64
		want      string
	}{
		{0.20, 2, Bull},
		{-0.15, 2, Bear},
		{0.02, 5, Stagflation},
		{0.10, 5, Sideways},
		{0.05, 2, Sideways},
	}
	for _, c := range cases {
		if got := Classify(c.ret, c.infl); got != c.want {
			t.Errorf("Classify(%.2f, %.1f): expected %s, got %s", c.ret, c.infl, c.want, got)
		}
	}
}

func TestBuild_TooShort(t *testing.T) {
	if _, err := Build([]Record{{Year: 2000, MSCI: 100}}); err == nil {
		t.Error("expected error for a single year")
	}
}

func TestCapeCandidates(t *testing.T) {
	var recs []Record
	for i := 0; i < 12; i++ {
		recs = append(recs, Record{Year: 2000 + i, MSCI: 100 + float64(i), Cape: 10 + 2*float64(i)})
	}
	ds, err := Build(recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// capes of the prepared years are 10..30 step 2
	narrow := ds.CapeCandidates(20)
	if len(narrow) != 5 {
		t.Errorf("expected 5 candidates within 20%%, got %d", len(narrow))
	}
	wide := ds.CapeCandidates(12)
	if len(wide) <= 2 {
		t.Errorf("expected widened candidate set, got %d", len(wide))
	}
	if got := ds.CapeCandidates(500); len(got) != len(ds.Years) {
		t.Errorf("expected all years without a match, got %d", len(got))
	}

	plain, _ := Default()
	if got := plain.CapeCandidates(25); len(got) != len(plain.Years) {
		t.Errorf("expected all years without CAPE data, got %d", len(got))
	}
}

func TestLoadFileAndSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	content := "years:\n  - {year: 2000, msci: 100, inflation: 2, rate: 3, wage: 2, gold: 5}\n  - {year: 2001, msci: 120, inflation: 1, rate: 3, wage: 2, gold: 1}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := NewSource(path, "").Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Years) != 1 || ds.Years[0].Regime != Bull {
		t.Errorf("expected one bull year, got %+v", ds.Years)
	}

	ds, err = NewSource(filepath.Join(t.TempDir(), "missing.yaml"), "").Load(context.Background())
	if err != nil {
		t.Fatalf("expected fallback to embedded data, got %v", err)
	}
	if len(ds.Years) != 55 {
		t.Errorf("expected embedded dataset, got %d years", len(ds.Years))
	}

	if _, err := (FileSource{Path: path + ".missing"}).Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Parse([]byte("years:\n  - {year: 2000, msci: 100, bogus: 1}\n")); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLifeExpectancy(t *testing.T) {
	cases := []struct {
		g    model.Gender
		age  int
		want float64
	}{
		{model.GenderMale, 65, 20},
		{model.GenderMale, 80, 9},
		{model.GenderMale, 110, 1},
		{model.GenderMale, 130, 1},
	}
	for _, c := range cases {
		if got := LifeExpectancy(c.g, c.age); got != c.want {
			t.Errorf("LifeExpectancy(%s, %d): expected %.0f, got %.0f", c.g, c.age, c.want, got)
		}
	}
	if LifeExpectancy(model.GenderFemale, 65) <= LifeExpectancy(model.GenderMale, 65) {
		t.Error("expected women to outlive men at 65")
	}
}

func TestSurvivalQuantileYears(t *testing.T) {
	if got := SurvivalQuantileYears(model.GenderMale, 65, 0.85); got != 29 {
		t.Errorf("expected 29 years, got %.0f", got)
	}
	if got := SurvivalQuantileYears(model.GenderMale, 65, 0.5); got != 21 {
		t.Errorf("expected 21 years, got %.0f", got)
	}
	if got := SurvivalQuantileYears(model.GenderMale, 65, 0.1); got != 21 {
		t.Errorf("expected quantile clamped to 0.5, got %.0f", got)
	}
	if got := SurvivalQuantileYears(model.GenderMale, 100, 0.99); got != 7 {
		t.Errorf("expected 7 years, got %.0f", got)
	}
}

func TestHorizon(t *testing.T) {
	s := model.DynamicFlexSettings{HorizonYears: 80}
	if got := Horizon(model.GenderMale, 65, s); got != 60 {
		t.Errorf("expected clamp to 60, got %.0f", got)
	}
	s = model.DynamicFlexSettings{HorizonMethod: model.HorizonSurvivalQuantile, SurvivalQuantile: 0.85}
	if got := Horizon(model.GenderMale, 65, s); got != 29 {
		t.Errorf("expected 29, got %.0f", got)
	}
	s = model.DynamicFlexSettings{HorizonMethod: model.HorizonMean}
	if got := Horizon(model.GenderMale, 65, s); got != 20 {
		t.Errorf("expected 20, got %.0f", got)
	}
}
