package dive

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"

	"divelog/internal/model"
)

func validRaw() RawDive {
	return RawDive{
		Title:             "Morning reef",
		DiveSite:          "Shark Point",
		Date:              "2024-06-01",
		MaxDepthMeters:    number(18.3),
		BottomTimeMinutes: number(45),
		EntryType:         "boat",
	}
}

func number(v float64) Number {
	return Number{value: v, set: true}
}

func TestMissingRequiredFieldsAllEnumerated(t *testing.T) {
	raw := RawDive{Title: "   ", DiveSite: "Shark Point"}
	_, err := NormalizeAndValidate(raw, Metric)
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	expect := []string{"title", "date", "maxDepthMeters", "bottomTimeMinutes", "entryType"}
	sort.Strings(verr.Fields)
	sort.Strings(expect)
	if !reflect.DeepEqual(verr.Fields, expect) {
		t.Fatalf("expected missing fields %v, got %v", expect, verr.Fields)
	}
}

func TestEachRequiredFieldReported(t *testing.T) {
	blank := map[string]func(*RawDive){
		"title":             func(r *RawDive) { r.Title = "" },
		"diveSite":          func(r *RawDive) { r.DiveSite = "" },
		"date":              func(r *RawDive) { r.Date = "" },
		"maxDepthMeters":    func(r *RawDive) { r.MaxDepthMeters = Number{} },
		"bottomTimeMinutes": func(r *RawDive) { r.BottomTimeMinutes = Number{} },
		"entryType":         func(r *RawDive) { r.EntryType = "" },
	}
	for field, clear := range blank {
		raw := validRaw()
		clear(&raw)
		_, err := NormalizeAndValidate(raw, Metric)
		verr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("field %s: expected ValidationError, got %v", field, err)
		}
		if len(verr.Fields) != 1 || verr.Fields[0] != field {
			t.Fatalf("field %s: expected exactly [%s], got %v", field, field, verr.Fields)
		}
	}
}

func TestValidMetricDive(t *testing.T) {
	d, err := NormalizeAndValidate(validRaw(), Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Title != "Morning reef" || d.DiveSite != "Shark Point" {
		t.Fatalf("unexpected core fields: %+v", d)
	}
	if d.MaxDepthMeters != 18.3 || d.BottomTimeMinutes != 45 {
		t.Fatalf("unexpected numbers: %+v", d)
	}
	if d.Surge != model.ConditionNone {
		t.Fatalf("expected surge to default to none, got %s", d.Surge)
	}
	if d.LifeSeen == nil || len(d.LifeSeen) != 0 {
		t.Fatalf("expected empty lifeSeen list, got %v", d.LifeSeen)
	}
	if d.AvgDepthMeters != nil || d.VisibilityMeters != nil || d.WaterTempC != nil {
		t.Fatalf("expected absent optionals to stay absent")
	}
}

func TestZeroIsPreservedNotDropped(t *testing.T) {
	raw := validRaw()
	raw.WaterTempC = number(0)
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.WaterTempC == nil || *d.WaterTempC != 0 {
		t.Fatalf("expected water temp 0 to be stored, got %v", d.WaterTempC)
	}
}

func TestImperialConversion(t *testing.T) {
	raw := validRaw()
	raw.MaxDepthMeters = number(60)
	raw.VisibilityMeters = number(30)
	raw.WaterTempC = number(78.8)
	raw.Weight = &RawWeight{WeightKg: number(13.2), WeightType: []string{"belt"}}
	raw.Pressure = &RawPressure{StartPressureBar: number(3000), EndPressureBar: number(725)}

	d, err := NormalizeAndValidate(raw, Imperial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MaxDepthMeters != 18.3 {
		t.Fatalf("expected 60 ft = 18.3 m, got %v", d.MaxDepthMeters)
	}
	if *d.VisibilityMeters != 9.1 {
		t.Fatalf("expected 30 ft = 9.1 m, got %v", *d.VisibilityMeters)
	}
	if *d.WaterTempC != 26 {
		t.Fatalf("expected 78.8 F = 26 C, got %v", *d.WaterTempC)
	}
	if *d.Weight.WeightKg != 6 {
		t.Fatalf("expected 13.2 lbs = 6 kg, got %v", *d.Weight.WeightKg)
	}
	if *d.Pressure.StartPressureBar != 206.8 {
		t.Fatalf("expected 3000 psi = 206.8 bar, got %v", *d.Pressure.StartPressureBar)
	}
}

func TestPressureDerivation(t *testing.T) {
	raw := validRaw()
	clientLied := number(9999)
	raw.Pressure = &RawPressure{
		StartPressureBar: number(200),
		EndPressureBar:   number(50),
		AmountUsedBar:    clientLied,
	}
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := d.Pressure
	if p == nil || *p.StartPressureBar != 200 || *p.EndPressureBar != 50 {
		t.Fatalf("unexpected pressure: %+v", p)
	}
	if *p.AmountUsedBar != 150 {
		t.Fatalf("expected derived amount 150, got %v", *p.AmountUsedBar)
	}
}

func TestPressureNegativeDeltaAccepted(t *testing.T) {
	raw := validRaw()
	raw.Pressure = &RawPressure{StartPressureBar: number(50), EndPressureBar: number(200)}
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *d.Pressure.AmountUsedBar != -150 {
		t.Fatalf("expected -150 stored as entered, got %v", *d.Pressure.AmountUsedBar)
	}
}

func TestPressurePartialPairNotDerived(t *testing.T) {
	raw := validRaw()
	raw.Pressure = &RawPressure{StartPressureBar: number(200)}
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Pressure.AmountUsedBar != nil {
		t.Fatalf("expected no derived amount with missing end pressure")
	}
	if d.Pressure.EndPressureBar != nil {
		t.Fatalf("expected absent end pressure to stay absent")
	}
}

func TestAvgDepthAboveMaxAccepted(t *testing.T) {
	raw := validRaw()
	raw.AvgDepthMeters = number(30)
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *d.AvgDepthMeters != 30 {
		t.Fatalf("expected avg depth stored as entered, got %v", *d.AvgDepthMeters)
	}
}

func TestTankOtherRequiresCustomSpecs(t *testing.T) {
	raw := validRaw()
	raw.Tank = &RawTank{TankLabel: "Other", GasMix: "air"}
	_, err := NormalizeAndValidate(raw, Metric)
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0] != "tank.customSpecs" {
		t.Fatalf("expected tank.customSpecs, got %v", verr.Fields)
	}

	raw.Tank.CustomSpecs = "Faber 12L double"
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tank.CustomSpecs != "Faber 12L double" || d.Tank.GasMix != model.GasAir {
		t.Fatalf("unexpected tank: %+v", d.Tank)
	}
}

func TestEnumViolationsReported(t *testing.T) {
	raw := validRaw()
	raw.EntryType = "helicopter"
	raw.Surge = "tsunami"
	_, err := NormalizeAndValidate(raw, Metric)
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	expect := []string{"entryType", "surge"}
	sort.Strings(verr.Fields)
	if !reflect.DeepEqual(verr.Fields, expect) {
		t.Fatalf("expected %v, got %v", expect, verr.Fields)
	}
}

func TestRatingBounds(t *testing.T) {
	for _, bad := range []float64{0, 6, 3.5, -1} {
		raw := validRaw()
		raw.Rating = number(bad)
		if _, err := NormalizeAndValidate(raw, Metric); err == nil {
			t.Fatalf("expected rating %v to be rejected", bad)
		}
	}
	raw := validRaw()
	raw.Rating = number(5)
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *d.Rating != 5 {
		t.Fatalf("expected rating 5, got %v", *d.Rating)
	}
}

func TestLifeSeenTaxonomy(t *testing.T) {
	raw := validRaw()
	raw.LifeSeen = []RawLife{
		{Group: "Turtle", Detail: "Hawksbill"},
		{Group: "Nudibranch"},
	}
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.LifeSeen) != 2 || d.LifeSeen[0].Detail != "Hawksbill" {
		t.Fatalf("unexpected lifeSeen: %v", d.LifeSeen)
	}

	raw.LifeSeen = append(raw.LifeSeen, RawLife{Group: "Kraken"})
	if _, err := NormalizeAndValidate(raw, Metric); err == nil {
		t.Fatalf("expected unknown life group to be rejected")
	}
}

func TestDateAndTimeValidation(t *testing.T) {
	raw := validRaw()
	raw.Date = "01/06/2024"
	if _, err := NormalizeAndValidate(raw, Metric); err == nil {
		t.Fatalf("expected malformed date to be rejected")
	}

	raw = validRaw()
	raw.Date = "2999-01-01"
	if _, err := NormalizeAndValidate(raw, Metric); err == nil {
		t.Fatalf("expected future date to be rejected")
	}

	raw = validRaw()
	raw.Time = "9:75"
	if _, err := NormalizeAndValidate(raw, Metric); err == nil {
		t.Fatalf("expected malformed time to be rejected")
	}

	raw = validRaw()
	raw.Time = "09:45"
	d, err := NormalizeAndValidate(raw, Metric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Time != "09:45" {
		t.Fatalf("expected time kept, got %s", d.Time)
	}
}

func TestNumberAcceptsStringsAndNumbers(t *testing.T) {
	var raw RawDive
	payload := `{
		"title": "Wall dive",
		"diveSite": "Blue Hole",
		"date": "2024-06-01",
		"maxDepthMeters": "60",
		"bottomTimeMinutes": 38,
		"entryType": "shore",
		"visibilityMeters": "",
		"unitSystem": "imperial"
	}`
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if raw.VisibilityMeters.Set() {
		t.Fatalf("expected blank string to leave the value unset")
	}
	d, err := NormalizeAndValidate(raw, UnitSystem(raw.UnitSystem))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MaxDepthMeters != 18.3 {
		t.Fatalf("expected 60 ft = 18.3 m, got %v", d.MaxDepthMeters)
	}
}
