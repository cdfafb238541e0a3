// Package dive turns untrusted form payloads into canonical metric dive
// records. The unit system the values were entered in is an explicit
// argument; the record that comes out never remembers it.
package dive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"divelog/internal/model"
	"divelog/internal/units"
)

type UnitSystem string

const (
	Metric   UnitSystem = "metric"
	Imperial UnitSystem = "imperial"
)

// ParseUnitSystem resolves the payload's entry unit system. Absent means
// metric; anything else unrecognized is rejected.
func ParseUnitSystem(s string) (UnitSystem, bool) {
	switch UnitSystem(strings.TrimSpace(s)) {
	case "", Metric:
		return Metric, true
	case Imperial:
		return Imperial, true
	default:
		return "", false
	}
}

// ValidationError lists every missing or invalid field of a payload so the
// form can highlight all of them at once.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid dive payload: " + strings.Join(e.Fields, ", ")
}

// Number is a numeric form value. Forms submit numbers as strings, so it
// unmarshals from a JSON number or a quoted number; null, a missing key and
// a blank string all leave it unset. Unset is distinct from zero.
type Number struct {
	value float64
	set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		n.value = v
		n.set = true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.value = v
	n.set = true
	return nil
}

func (n Number) Set() bool      { return n.set }
func (n Number) Value() float64 { return n.value }

// RawTank, RawPressure, RawSuit, RawWeight and RawDive mirror the form
// payload before any trust is placed in it.

type RawTank struct {
	TankLabel   string `json:"tankLabel"`
	CustomSpecs string `json:"customSpecs"`
	GasMix      string `json:"gasMix"`
}

type RawPressure struct {
	StartPressureBar Number `json:"startPressureBar"`
	EndPressureBar   Number `json:"endPressureBar"`
	// AmountUsedBar is accepted in the payload but always discarded and
	// recomputed; a client-computed value is never trusted.
	AmountUsedBar Number `json:"amountUsedBar"`
}

type RawSuit struct {
	Type        string `json:"type"`
	ThicknessMm Number `json:"thicknessMm"`
	OtherText   string `json:"otherText"`
}

type RawWeight struct {
	WeightKg   Number   `json:"weightKg"`
	WeightType []string `json:"weightType"`
}

type RawLife struct {
	Group  string `json:"group"`
	Detail string `json:"detail"`
}

type RawDive struct {
	Title             string `json:"title"`
	DiveSite          string `json:"diveSite"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	MaxDepthMeters    Number `json:"maxDepthMeters"`
	AvgDepthMeters    Number `json:"avgDepthMeters"`
	BottomTimeMinutes Number `json:"bottomTimeMinutes"`
	EntryType         string `json:"entryType"`

	VisibilityMeters Number `json:"visibilityMeters"`
	WaterTempC       Number `json:"waterTempC"`
	AirTempC         Number `json:"airTempC"`
	Surge            string `json:"surge"`
	Current          string `json:"current"`

	Tank         *RawTank     `json:"tank"`
	Pressure     *RawPressure `json:"pressure"`
	ExposureSuit *RawSuit     `json:"exposureSuit"`
	Weight       *RawWeight   `json:"weight"`

	Rating          Number    `json:"rating"`
	LifeSeen        []RawLife `json:"lifeSeen"`
	AdditionalNotes string    `json:"additionalNotes"`

	// UnitSystem travels with the payload but is consumed here and never
	// reaches the stored record.
	UnitSystem string `json:"unitSystem"`
}

// requiredFields is the exact required set, in form order.
var requiredFields = []string{
	"title",
	"diveSite",
	"date",
	"maxDepthMeters",
	"bottomTimeMinutes",
	"entryType",
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// NormalizeAndValidate checks the payload and builds a canonical metric
// record. OwnerID, ID and timestamps are left for the caller to attach.
// On failure the returned error is a *ValidationError naming every
// offending field.
func NormalizeAndValidate(raw RawDive, unitSystem UnitSystem) (*model.Dive, error) {
	missing := checkRequired(raw)
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	var invalid []string
	imperial := unitSystem == Imperial

	d := &model.Dive{
		Title:    strings.TrimSpace(raw.Title),
		DiveSite: strings.TrimSpace(raw.DiveSite),
		LifeSeen: []model.LifeSighting{},
	}

	d.Date = strings.TrimSpace(raw.Date)
	if parsed, err := time.Parse(dateLayout, d.Date); err != nil {
		invalid = append(invalid, "date")
	} else if today := time.Now().UTC().Truncate(24 * time.Hour); parsed.After(today) {
		invalid = append(invalid, "date")
	}

	if model.Present(raw.Time) {
		d.Time = strings.TrimSpace(raw.Time)
		if _, err := time.Parse(timeLayout, d.Time); err != nil {
			invalid = append(invalid, "time")
		}
	}

	if raw.MaxDepthMeters.Value() <= 0 {
		invalid = append(invalid, "maxDepthMeters")
	}
	d.MaxDepthMeters = length(raw.MaxDepthMeters.Value(), imperial)

	if raw.AvgDepthMeters.Set() {
		// May exceed max depth; accepted as entered.
		avg := length(raw.AvgDepthMeters.Value(), imperial)
		d.AvgDepthMeters = &avg
	}

	if raw.BottomTimeMinutes.Value() <= 0 {
		invalid = append(invalid, "bottomTimeMinutes")
	}
	d.BottomTimeMinutes = raw.BottomTimeMinutes.Value()

	d.EntryType = model.EntryType(strings.TrimSpace(raw.EntryType))
	if !model.ValidEntryType(d.EntryType) {
		invalid = append(invalid, "entryType")
	}

	if raw.VisibilityMeters.Set() {
		vis := length(raw.VisibilityMeters.Value(), imperial)
		d.VisibilityMeters = &vis
	}
	if raw.WaterTempC.Set() {
		temp := temperature(raw.WaterTempC.Value(), imperial)
		d.WaterTempC = &temp
	}
	if raw.AirTempC.Set() {
		temp := temperature(raw.AirTempC.Value(), imperial)
		d.AirTempC = &temp
	}

	d.Surge = model.ConditionNone
	if model.Present(raw.Surge) {
		d.Surge = model.SeaCondition(strings.TrimSpace(raw.Surge))
		if !model.ValidSeaCondition(d.Surge) {
			invalid = append(invalid, "surge")
		}
	}
	if model.Present(raw.Current) {
		d.Current = model.SeaCondition(strings.TrimSpace(raw.Current))
		if !model.ValidSeaCondition(d.Current) {
			invalid = append(invalid, "current")
		}
	}

	if tank, fields := normalizeTank(raw.Tank); len(fields) > 0 {
		invalid = append(invalid, fields...)
	} else {
		d.Tank = tank
	}

	d.Pressure = normalizePressure(raw.Pressure, imperial)

	if suit, fields := normalizeSuit(raw.ExposureSuit); len(fields) > 0 {
		invalid = append(invalid, fields...)
	} else {
		d.ExposureSuit = suit
	}

	if weight, fields := normalizeWeight(raw.Weight, imperial); len(fields) > 0 {
		invalid = append(invalid, fields...)
	} else {
		d.Weight = weight
	}

	if raw.Rating.Set() {
		v := raw.Rating.Value()
		rating := int(v)
		if float64(rating) != v || rating < 1 || rating > 5 {
			invalid = append(invalid, "rating")
		} else {
			d.Rating = &rating
		}
	}

	for _, sighting := range raw.LifeSeen {
		group := model.LifeGroup(strings.TrimSpace(sighting.Group))
		if !model.ValidLifeGroup(group) {
			invalid = append(invalid, "lifeSeen")
			break
		}
		d.LifeSeen = append(d.LifeSeen, model.LifeSighting{
			Group:  group,
			Detail: strings.TrimSpace(sighting.Detail),
		})
	}

	d.AdditionalNotes = strings.TrimSpace(raw.AdditionalNotes)

	if len(invalid) > 0 {
		return nil, &ValidationError{Fields: invalid}
	}
	return d, nil
}

func checkRequired(raw RawDive) []string {
	var missing []string
	for _, field := range requiredFields {
		supplied := false
		switch field {
		case "title":
			supplied = model.Present(raw.Title)
		case "diveSite":
			supplied = model.Present(raw.DiveSite)
		case "date":
			supplied = model.Present(raw.Date)
		case "maxDepthMeters":
			supplied = raw.MaxDepthMeters.Set()
		case "bottomTimeMinutes":
			supplied = raw.BottomTimeMinutes.Set()
		case "entryType":
			supplied = model.Present(raw.EntryType)
		}
		if !supplied {
			missing = append(missing, field)
		}
	}
	return missing
}

func normalizeTank(raw *RawTank) (*model.Tank, []string) {
	if raw == nil {
		return nil, nil
	}
	label := strings.TrimSpace(raw.TankLabel)
	specs := strings.TrimSpace(raw.CustomSpecs)
	mix := strings.TrimSpace(raw.GasMix)
	if label == "" && specs == "" && mix == "" {
		return nil, nil
	}

	var invalid []string
	if !model.ValidTankLabel(label) {
		invalid = append(invalid, "tank.tankLabel")
	}
	if label == model.TankLabelOther && specs == "" {
		invalid = append(invalid, "tank.customSpecs")
	}
	tank := &model.Tank{TankLabel: label, CustomSpecs: specs}
	if mix != "" {
		tank.GasMix = model.GasMix(mix)
		if !model.ValidGasMix(tank.GasMix) {
			invalid = append(invalid, "tank.gasMix")
		}
	}
	if len(invalid) > 0 {
		return nil, invalid
	}
	return tank, nil
}

// normalizePressure always recomputes the derived amount from start minus
// end; a negative difference is stored as entered. When either side is
// absent the supplied values pass through with no derivation.
func normalizePressure(raw *RawPressure, imperial bool) *model.Pressure {
	if raw == nil || (!raw.StartPressureBar.Set() && !raw.EndPressureBar.Set()) {
		return nil
	}

	p := &model.Pressure{}
	var start, end float64
	if raw.StartPressureBar.Set() {
		start = pressure(raw.StartPressureBar.Value(), imperial)
	}
	if raw.EndPressureBar.Set() {
		end = pressure(raw.EndPressureBar.Value(), imperial)
	}
	if raw.StartPressureBar.Set() && raw.EndPressureBar.Set() {
		used := units.Round1(start - end)
		startRounded, endRounded := round(start, imperial), round(end, imperial)
		p.StartPressureBar = &startRounded
		p.EndPressureBar = &endRounded
		p.AmountUsedBar = &used
		return p
	}
	if raw.StartPressureBar.Set() {
		startRounded := round(start, imperial)
		p.StartPressureBar = &startRounded
	}
	if raw.EndPressureBar.Set() {
		endRounded := round(end, imperial)
		p.EndPressureBar = &endRounded
	}
	return p
}

func normalizeSuit(raw *RawSuit) (*model.ExposureSuit, []string) {
	if raw == nil {
		return nil, nil
	}
	suitType := strings.TrimSpace(raw.Type)
	if suitType == "" && !raw.ThicknessMm.Set() && !model.Present(raw.OtherText) {
		return nil, nil
	}

	suit := &model.ExposureSuit{Type: model.SuitType(suitType)}
	if !model.ValidSuitType(suit.Type) {
		return nil, []string{"exposureSuit.type"}
	}
	if raw.ThicknessMm.Set() {
		// Suit thickness is quoted in mm in both unit systems.
		thickness := raw.ThicknessMm.Value()
		suit.ThicknessMm = &thickness
	}
	if suit.Type == model.SuitOther {
		suit.OtherText = strings.TrimSpace(raw.OtherText)
	}
	return suit, nil
}

func normalizeWeight(raw *RawWeight, imperial bool) (*model.Weight, []string) {
	if raw == nil {
		return nil, nil
	}
	if !raw.WeightKg.Set() && len(raw.WeightType) == 0 {
		return nil, nil
	}

	weight := &model.Weight{}
	if raw.WeightKg.Set() {
		kg := raw.WeightKg.Value()
		if imperial {
			kg = units.Round1(units.LbsToKg(kg))
		}
		weight.WeightKg = &kg
	}
	for _, tag := range raw.WeightType {
		position := model.WeightPosition(strings.TrimSpace(tag))
		if !model.ValidWeightPosition(position) {
			return nil, []string{"weight.weightType"}
		}
		weight.WeightType = append(weight.WeightType, position)
	}
	return weight, nil
}

// length converts an entered depth/visibility to meters, rounding at the
// storage boundary for converted values only.
func length(v float64, imperial bool) float64 {
	if imperial {
		return units.Round1(units.FeetToMeters(v))
	}
	return v
}

func temperature(v float64, imperial bool) float64 {
	if imperial {
		return units.Round1(units.FahrenheitToCelsius(v))
	}
	return v
}

// pressure converts to bar without rounding so the derived amount is
// computed from unrounded values.
func pressure(v float64, imperial bool) float64 {
	if imperial {
		return units.PsiToBar(v)
	}
	return v
}

func round(v float64, imperial bool) float64 {
	if imperial {
		return units.Round1(v)
	}
	return v
}
