// Package units converts between the metric values stored on a dive record
// and the imperial values a diver may have entered them in. The factors
// match the ones the web client uses, so a value converted on entry and
// re-expanded for display round-trips within 1 decimal place.
package units

import "math"

const (
	feetPerMeter = 3.28084
	lbsPerKg     = 2.20462
	psiPerBar    = 14.5038
)

// Conversion functions return unrounded values. Rounding happens only at
// the formatting/storage boundary via Round1, never between chained
// conversions.

func MetersToFeet(m float64) float64 { return m * feetPerMeter }

func FeetToMeters(ft float64) float64 { return ft / feetPerMeter }

func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

func KgToLbs(kg float64) float64 { return kg * lbsPerKg }

func LbsToKg(lbs float64) float64 { return lbs / lbsPerKg }

func BarToPsi(bar float64) float64 { return bar * psiPerBar }

func PsiToBar(psi float64) float64 { return psi / psiPerBar }

// Round1 rounds to 1 decimal place for display and storage.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
