package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnsupportedResource = errors.New("unsupported FHIR resource")

// Subset of FHIR R4 Bundle, Observation and Patient that carries hemogram data.
type fhirResource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`

	Code              fhirCodeableConcept `json:"code"`
	Subject           *fhirReference      `json:"subject"`
	EffectiveDateTime string              `json:"effectiveDateTime"`
	ValueQuantity     *fhirQuantity       `json:"valueQuantity"`
	Component         []struct {
		Code          fhirCodeableConcept `json:"code"`
		ValueQuantity *fhirQuantity       `json:"valueQuantity"`
	} `json:"component"`

	Name      []fhirHumanName `json:"name"`
	Gender    string          `json:"gender"`
	BirthDate string          `json:"birthDate"`

	Entry []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

type fhirCodeableConcept struct {
	Coding []struct {
		System string `json:"system"`
		Code   string `json:"code"`
	} `json:"coding"`
}

func (c fhirCodeableConcept) firstCode() string {
	if len(c.Coding) == 0 {
		return ""
	}
	return c.Coding[0].Code
}

type fhirReference struct {
	Reference string `json:"reference"`
	Display   string `json:"display"`
}

type fhirQuantity struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

type fhirHumanName struct {
	Text   string   `json:"text"`
	Family string   `json:"family"`
	Given  []string `json:"given"`
}

// ParseFHIR reads a FHIR Bundle, Observation or Patient and returns the
// hemograms it contains. Observations in a bundle are matched to the
// bundle's patients through their subject reference. A lone Patient
// yields no hemograms.
func ParseFHIR(data []byte) ([]Hemogram, error) {
	var res fhirResource
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode FHIR resource: %w", err)
	}

	switch res.ResourceType {
	case "Observation":
		return []Hemogram{observationToHemogram(res, nil)}, nil
	case "Patient":
		return nil, nil
	case "Bundle":
		return parseBundle(res)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedResource, res.ResourceType)
	}
}

func parseBundle(bundle fhirResource) ([]Hemogram, error) {
	patients := map[string]Patient{}
	var observations []fhirResource

	for i, entry := range bundle.Entry {
		if len(entry.Resource) == 0 {
			continue
		}
		var res fhirResource
		if err := json.Unmarshal(entry.Resource, &res); err != nil {
			return nil, fmt.Errorf("decode bundle entry %d: %w", i, err)
		}
		switch res.ResourceType {
		case "Patient":
			patients["Patient/"+res.ID] = patientFrom(res)
		case "Observation":
			observations = append(observations, res)
		}
	}

	hemograms := make([]Hemogram, 0, len(observations))
	for _, obs := range observations {
		hemograms = append(hemograms, observationToHemogram(obs, patients))
	}
	return hemograms, nil
}

func observationToHemogram(obs fhirResource, patients map[string]Patient) Hemogram {
	h := Hemogram{ID: obs.ID}

	if obs.Subject != nil {
		if p, ok := patients[obs.Subject.Reference]; ok {
			h.Patient = p
		} else {
			h.Patient = Patient{ID: obs.Subject.Reference, Name: obs.Subject.Display}
		}
	}
	if t, err := parseFHIRTime(obs.EffectiveDateTime); err == nil {
		h.CollectedAt = t
	}

	// Panels carry one component per parameter; single results carry a value.
	if len(obs.Component) > 0 {
		for _, c := range obs.Component {
			if m, ok := measurement(c.Code, c.ValueQuantity); ok {
				h.Values = append(h.Values, m)
			}
		}
	} else if m, ok := measurement(obs.Code, obs.ValueQuantity); ok {
		h.Values = append(h.Values, m)
	}
	return h
}

func measurement(code fhirCodeableConcept, q *fhirQuantity) (Measurement, bool) {
	if q == nil || q.Value == nil {
		return Measurement{}, false
	}
	p, ok := ParameterForLOINC(code.firstCode())
	if !ok {
		return Measurement{}, false
	}
	return Measurement{Parameter: p, Value: *q.Value}, true
}

func patientFrom(res fhirResource) Patient {
	p := Patient{ID: "Patient/" + res.ID, Gender: res.Gender}
	if len(res.Name) > 0 {
		n := res.Name[0]
		p.Name = n.Text
		if p.Name == "" {
			p.Name = strings.TrimSpace(strings.Join(append(append([]string{}, n.Given...), n.Family), " "))
		}
	}
	if t, err := parseFHIRTime(res.BirthDate); err == nil {
		p.BirthDate = t
	}
	return p
}

var fhirTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02", "2006-01", "2006"}

func parseFHIRTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range fhirTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid FHIR date %q", s)
}
