// Package analyzer compares hemogram parameters against reference ranges and
// turns the out-of-range ones into alerts.
package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hemogram-alerts-go/internal/metrics"
	"hemogram-alerts-go/internal/models"
)

type Parameter string

const (
	Leukocytes   Parameter = "leukocytes"
	Hemoglobin   Parameter = "hemoglobin"
	Platelets    Parameter = "platelets"
	Hematocrit   Parameter = "hematocrit"
	Erythrocytes Parameter = "erythrocytes"
	MCV          Parameter = "mcv"
	MCH          Parameter = "mch"
	MCHC         Parameter = "mchc"
	RDW          Parameter = "rdw"
	Neutrophils  Parameter = "neutrophils"
	Lymphocytes  Parameter = "lymphocytes"
	Monocytes    Parameter = "monocytes"
	Eosinophils  Parameter = "eosinophils"
	Basophils    Parameter = "basophils"
)

type parameterInfo struct {
	name  string
	unit  string
	loinc string
}

var parameters = map[Parameter]parameterInfo{
	Leukocytes:   {"Leukocytes", "/μL", "6690-2"},
	Hemoglobin:   {"Hemoglobin", "g/dL", "718-7"},
	Platelets:    {"Platelets", "/μL", "777-3"},
	Hematocrit:   {"Hematocrit", "%", "4544-3"},
	Erythrocytes: {"Erythrocytes", "millions/μL", "789-8"},
	MCV:          {"Mean Corpuscular Volume", "fL", "787-2"},
	MCH:          {"Mean Corpuscular Hemoglobin", "pg", "785-6"},
	MCHC:         {"Mean Corpuscular Hemoglobin Concentration", "g/dL", "786-4"},
	RDW:          {"Red Cell Distribution Width", "%", "788-0"},
	Neutrophils:  {"Neutrophils", "/μL", "751-8"},
	Lymphocytes:  {"Lymphocytes", "/μL", "731-0"},
	Monocytes:    {"Monocytes", "/μL", "742-7"},
	Eosinophils:  {"Eosinophils", "/μL", "711-2"},
	Basophils:    {"Basophils", "/μL", "704-7"},
}

var byLOINC = func() map[string]Parameter {
	m := make(map[string]Parameter, len(parameters))
	for p, info := range parameters {
		m[info.loinc] = p
	}
	return m
}()

// ParameterForLOINC maps a LOINC code to the parameter it measures.
func ParameterForLOINC(code string) (Parameter, bool) {
	p, ok := byLOINC[code]
	return p, ok
}

func (p Parameter) Name() string  { return parameters[p].name }
func (p Parameter) Unit() string  { return parameters[p].unit }
func (p Parameter) LOINC() string { return parameters[p].loinc }

type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// UnknownAge is passed to ReferenceRange when the birth date is missing.
const UnknownAge = -1

func isMale(gender string) bool {
	return strings.EqualFold(gender, "male")
}

// ReferenceRange returns the normal range for p given the patient's FHIR
// gender and age in years. Parameters without a range report false and are
// never flagged.
func ReferenceRange(p Parameter, gender string, age int) (Range, bool) {
	male := isMale(gender)
	switch p {
	case Hemoglobin:
		switch {
		case age >= 6 && age < 12:
			return Range{11.5, 15.5, "g/dL"}, true
		case age >= 12 && age < 18:
			if male {
				return Range{13.0, 16.0, "g/dL"}, true
			}
			return Range{12.0, 16.0, "g/dL"}, true
		case male:
			return Range{13.5, 17.5, "g/dL"}, true
		default:
			return Range{12.0, 16.0, "g/dL"}, true
		}
	case Leukocytes:
		return Range{4000, 11000, "/μL"}, true
	case Platelets:
		return Range{150000, 450000, "/μL"}, true
	case Hematocrit:
		if male {
			return Range{40, 52, "%"}, true
		}
		return Range{36, 48, "%"}, true
	case Erythrocytes:
		if male {
			return Range{4.5, 6.0, "millions/μL"}, true
		}
		return Range{4.0, 5.5, "millions/μL"}, true
	case Neutrophils:
		return Range{1500, 7500, "/μL"}, true
	case Lymphocytes:
		return Range{1000, 4000, "/μL"}, true
	case Monocytes:
		return Range{200, 800, "/μL"}, true
	case Eosinophils:
		return Range{50, 500, "/μL"}, true
	case Basophils:
		return Range{0, 100, "/μL"}, true
	}
	return Range{}, false
}

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// SeverityFor grades a deviation percentage: below 20 mild, below 50
// moderate, below 100 severe, critical from there on.
func SeverityFor(percent float64) Severity {
	if percent < 0 {
		percent = -percent
	}
	switch {
	case percent < 20:
		return SeverityMild
	case percent < 50:
		return SeverityModerate
	case percent < 100:
		return SeveritySevere
	default:
		return SeverityCritical
	}
}

// DeviationPercent is how far v lies outside r, relative to the violated limit.
func DeviationPercent(v float64, r Range) float64 {
	if v < r.Min {
		return (r.Min - v) / r.Min * 100
	}
	return (v - r.Max) / r.Max * 100
}

type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	BirthDate time.Time `json:"birth_date,omitempty"`
}

// Age returns the completed years at now, or UnknownAge without a birth date.
func (p Patient) Age(now time.Time) int {
	if p.BirthDate.IsZero() {
		return UnknownAge
	}
	years := now.Year() - p.BirthDate.Year()
	if now.Month() < p.BirthDate.Month() ||
		(now.Month() == p.BirthDate.Month() && now.Day() < p.BirthDate.Day()) {
		years--
	}
	return years
}

type Measurement struct {
	Parameter Parameter `json:"parameter"`
	Value     float64   `json:"value"`
}

type Hemogram struct {
	ID          string        `json:"id"`
	Patient     Patient       `json:"patient"`
	CollectedAt time.Time     `json:"collected_at"`
	Values      []Measurement `json:"values"`
}

type Deviation struct {
	Parameter   Parameter `json:"parameter"`
	Value       float64   `json:"value"`
	Range       Range     `json:"range"`
	Percent     float64   `json:"percent"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

type Analyzer struct {
	logger zerolog.Logger
	now    func() time.Time
}

func New(logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		logger: logger.With().Str("component", "analyzer").Logger(),
		now:    time.Now,
	}
}

// Analyze returns one deviation per out-of-range value, in input order.
func (a *Analyzer) Analyze(h Hemogram) []Deviation {
	age := h.Patient.Age(a.now())

	var deviations []Deviation
	for _, m := range h.Values {
		r, ok := ReferenceRange(m.Parameter, h.Patient.Gender, age)
		if !ok || r.Contains(m.Value) {
			continue
		}

		pct := DeviationPercent(m.Value, r)
		d := Deviation{
			Parameter:   m.Parameter,
			Value:       m.Value,
			Range:       r,
			Percent:     pct,
			Severity:    SeverityFor(pct),
			Description: describe(m.Parameter, m.Value, r, pct, h.Patient.Gender),
		}
		deviations = append(deviations, d)

		metrics.DeviationsTotal.WithLabelValues(string(d.Severity)).Inc()
		a.logger.Warn().
			Str("hemogram_id", h.ID).
			Str("parameter", string(d.Parameter)).
			Str("severity", string(d.Severity)).
			Msg(d.Description)
	}
	return deviations
}

// Alerts renders the deviations of h in the alert list wire format: the
// description as message, the patient as region and the collection time as
// parameter.
func (a *Analyzer) Alerts(h Hemogram) []models.Alert {
	patient := h.Patient.Name
	if patient == "" {
		patient = h.Patient.ID
	}
	received := ""
	if !h.CollectedAt.IsZero() {
		received = h.CollectedAt.Format("2006-01-02 15:04")
	}

	alerts := []models.Alert{}
	for _, d := range a.Analyze(h) {
		alerts = append(alerts, models.Alert{
			Message:   d.Description,
			Region:    patient,
			Parameter: received,
		})
	}
	return alerts
}

func describe(p Parameter, v float64, r Range, pct float64, gender string) string {
	if p == Hemoglobin && v < r.Min {
		return fmt.Sprintf("ANEMIA DETECTED: low hemoglobin (%.1f g/dL). Reference for %s: %.1f - %.1f g/dL. %.1f%% below the lower limit.",
			v, subject(gender), r.Min, r.Max, pct)
	}

	level := "HIGH"
	if v < r.Min {
		level = "LOW"
	}
	return fmt.Sprintf("%s: %s (%.2f %s). Reference range: %.2f - %.2f %s. Deviation of %.1f%%.",
		p.Name(), level, v, r.Unit, r.Min, r.Max, r.Unit, pct)
}

func subject(gender string) string {
	switch {
	case gender == "":
		return "adult"
	case isMale(gender):
		return "adult man"
	default:
		return "adult woman"
	}
}
