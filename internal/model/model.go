// Package model defines the canonical dive record and account shapes.
// A persisted dive is always metric; the unit system a dive was entered in
// is resolved at the form boundary and never stored.
package model

import (
	"strings"
	"time"
)

type EntryType string

const (
	EntryBoat       EntryType = "boat"
	EntryShore      EntryType = "shore"
	EntryLiveaboard EntryType = "liveaboard"
	EntryOther      EntryType = "other"
)

func ValidEntryType(v EntryType) bool {
	switch v {
	case EntryBoat, EntryShore, EntryLiveaboard, EntryOther:
		return true
	default:
		return false
	}
}

// SeaCondition grades surge and current strength.
type SeaCondition string

const (
	ConditionNone   SeaCondition = "none"
	ConditionLight  SeaCondition = "light"
	ConditionMedium SeaCondition = "medium"
	ConditionStrong SeaCondition = "strong"
)

func ValidSeaCondition(v SeaCondition) bool {
	switch v {
	case ConditionNone, ConditionLight, ConditionMedium, ConditionStrong:
		return true
	default:
		return false
	}
}

type GasMix string

const (
	GasAir          GasMix = "air"
	GasEAN32        GasMix = "ean32"
	GasEAN36        GasMix = "ean36"
	GasEAN40        GasMix = "ean40"
	GasCustomNitrox GasMix = "customNitrox"
)

func ValidGasMix(v GasMix) bool {
	switch v {
	case GasAir, GasEAN32, GasEAN36, GasEAN40, GasCustomNitrox:
		return true
	default:
		return false
	}
}

// TankLabelOther is the escape hatch for cylinders outside the catalog;
// it requires free-text specs on the tank.
const TankLabelOther = "Other"

// TankLabels is the catalog of named cylinder specs offered by the form.
var TankLabels = []string{
	"AL40", "AL63", "AL80", "AL100",
	"HP80", "HP100", "HP117", "HP120",
	"LP85", "LP95",
	TankLabelOther,
}

func ValidTankLabel(v string) bool {
	for _, label := range TankLabels {
		if v == label {
			return true
		}
	}
	return false
}

type SuitType string

const (
	SuitNone    SuitType = "none"
	SuitShortie SuitType = "shortie"
	SuitFull    SuitType = "full"
	SuitDrysuit SuitType = "drysuit"
	SuitOther   SuitType = "other"
)

func ValidSuitType(v SuitType) bool {
	switch v {
	case SuitNone, SuitShortie, SuitFull, SuitDrysuit, SuitOther:
		return true
	default:
		return false
	}
}

type WeightPosition string

const (
	WeightBelt       WeightPosition = "belt"
	WeightIntegrated WeightPosition = "integrated"
	WeightTrim       WeightPosition = "trim"
	WeightAnkle      WeightPosition = "ankle"
)

func ValidWeightPosition(v WeightPosition) bool {
	switch v {
	case WeightBelt, WeightIntegrated, WeightTrim, WeightAnkle:
		return true
	default:
		return false
	}
}

type LifeGroup string

// LifeGroups is the fixed sighting taxonomy, "Other" last.
var LifeGroups = []LifeGroup{
	"Turtle",
	"Ray",
	"Shark",
	"Eel",
	"Nudibranch",
	"Crustacean",
	"Cephalopod",
	"Reef Fish",
	"Schooling Fish",
	"Seahorse / Pipefish",
	"Dolphin / Whale",
	"Coral / Sponge",
	"Other",
}

func ValidLifeGroup(v LifeGroup) bool {
	for _, group := range LifeGroups {
		if v == group {
			return true
		}
	}
	return false
}

// Tank describes the cylinder by catalog label; CustomSpecs carries the
// free-text description when the label is "Other".
type Tank struct {
	TankLabel   string `json:"tankLabel"`
	CustomSpecs string `json:"customSpecs,omitempty"`
	GasMix      GasMix `json:"gasMix,omitempty"`
}

// Pressure is stored in bar. AmountUsedBar is derived server-side from
// start minus end and never taken from the client.
type Pressure struct {
	StartPressureBar *float64 `json:"startPressureBar,omitempty"`
	EndPressureBar   *float64 `json:"endPressureBar,omitempty"`
	AmountUsedBar    *float64 `json:"amountUsedBar,omitempty"`
}

type ExposureSuit struct {
	Type        SuitType `json:"type"`
	ThicknessMm *float64 `json:"thicknessMm,omitempty"`
	OtherText   string   `json:"otherText,omitempty"`
}

type Weight struct {
	WeightKg   *float64         `json:"weightKg,omitempty"`
	WeightType []WeightPosition `json:"weightType,omitempty"`
}

type LifeSighting struct {
	Group  LifeGroup `json:"group"`
	Detail string    `json:"detail,omitempty"`
}

// Dive is the canonical record. All physical quantities are metric:
// depths and visibility in meters, temperatures in Celsius, weight in kg,
// pressures in bar. Optional sub-objects are present when non-nil.
type Dive struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`

	Title             string    `json:"title"`
	DiveSite          string    `json:"diveSite"`
	Date              string    `json:"date"`
	Time              string    `json:"time,omitempty"`
	MaxDepthMeters    float64   `json:"maxDepthMeters"`
	AvgDepthMeters    *float64  `json:"avgDepthMeters,omitempty"`
	BottomTimeMinutes float64   `json:"bottomTimeMinutes"`
	EntryType         EntryType `json:"entryType"`

	VisibilityMeters *float64     `json:"visibilityMeters,omitempty"`
	WaterTempC       *float64     `json:"waterTempC,omitempty"`
	AirTempC         *float64     `json:"airTempC,omitempty"`
	Surge            SeaCondition `json:"surge"`
	Current          SeaCondition `json:"current,omitempty"`

	Tank         *Tank         `json:"tank,omitempty"`
	Pressure     *Pressure     `json:"pressure,omitempty"`
	ExposureSuit *ExposureSuit `json:"exposureSuit,omitempty"`
	Weight       *Weight       `json:"weight,omitempty"`

	Rating          *int           `json:"rating,omitempty"`
	LifeSeen        []LifeSighting `json:"lifeSeen"`
	AdditionalNotes string         `json:"additionalNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Account holds a user. CurrentRefreshToken is the single active refresh
// token; a new login overwrites it, invalidating any other session.
type Account struct {
	ID                  string
	Email               string
	PasswordHash        string
	CurrentRefreshToken *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Present reports whether a text value counts as supplied: anything left
// after trimming whitespace.
func Present(s string) bool {
	return strings.TrimSpace(s) != ""
}
