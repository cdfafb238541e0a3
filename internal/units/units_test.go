package units

import (
	"math"
	"testing"
)

func TestKnownConversions(t *testing.T) {
	if got := Round1(FeetToMeters(60)); got != 18.3 {
		t.Fatalf("expected 60 ft = 18.3 m, got %v", got)
	}
	if got := Round1(MetersToFeet(18.3)); got != 60.0 {
		t.Fatalf("expected 18.3 m = 60.0 ft, got %v", got)
	}
	if got := Round1(CelsiusToFahrenheit(26)); got != 78.8 {
		t.Fatalf("expected 26 C = 78.8 F, got %v", got)
	}
	if got := Round1(FahrenheitToCelsius(32)); got != 0 {
		t.Fatalf("expected 32 F = 0 C, got %v", got)
	}
	if got := Round1(KgToLbs(6)); got != 13.2 {
		t.Fatalf("expected 6 kg = 13.2 lbs, got %v", got)
	}
	if got := Round1(BarToPsi(200)); got != 2900.8 {
		t.Fatalf("expected 200 bar = 2900.8 psi, got %v", got)
	}
	if got := Round1(PsiToBar(3000)); got != 206.8 {
		t.Fatalf("expected 3000 psi = 206.8 bar, got %v", got)
	}
}

func TestRoundTrip(t *testing.T) {
	pairs := []struct {
		name    string
		forward func(float64) float64
		back    func(float64) float64
	}{
		{"length", FeetToMeters, MetersToFeet},
		{"temperature", FahrenheitToCelsius, CelsiusToFahrenheit},
		{"mass", LbsToKg, KgToLbs},
		{"pressure", PsiToBar, BarToPsi},
	}
	inputs := []float64{0, 0.1, 1, 32, 60, 98.6, 200, 3000}
	for _, pair := range pairs {
		for _, in := range inputs {
			out := pair.back(pair.forward(in))
			if math.Abs(out-in) > 0.05 {
				t.Fatalf("%s round trip of %v drifted to %v", pair.name, in, out)
			}
		}
	}
}

func TestRound1(t *testing.T) {
	cases := map[float64]float64{
		18.288:  18.3,
		18.24:   18.2,
		-1.25:   -1.3,
		0:       0,
		206.843: 206.8,
	}
	for in, expect := range cases {
		if got := Round1(in); got != expect {
			t.Fatalf("Round1(%v) = %v, expected %v", in, got, expect)
		}
	}
}

func TestChainedConversionsDoNotCompound(t *testing.T) {
	// Deriving gas used from two converted pressures must use unrounded
	// intermediates: converting, subtracting, then rounding once has to
	// match rounding the true difference.
	start := PsiToBar(3000)
	end := PsiToBar(725)
	if got := Round1(start - end); got != Round1(PsiToBar(3000-725)) {
		t.Fatalf("chained conversion compounded rounding error: %v", got)
	}
}
