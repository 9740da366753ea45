package handlers

import (
	"errors"
	"io"
	"net/http"

	"hemogram-alerts-go/internal/analyzer"
	"hemogram-alerts-go/internal/models"
)

const maxFHIRBody = 1 << 20

// AnalyzeHandler takes a FHIR Bundle, Observation or Patient and answers
// with the alerts for its out-of-range values, in the alert list format.
func (h *Handler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFHIRBody))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	hemograms, err := analyzer.ParseFHIR(data)
	if errors.Is(err, analyzer.ErrUnsupportedResource) {
		http.Error(w, "Unsupported FHIR resource", http.StatusUnprocessableEntity)
		return
	} else if err != nil {
		http.Error(w, "Invalid FHIR resource", http.StatusBadRequest)
		return
	}

	alerts := []models.Alert{}
	for _, hm := range hemograms {
		alerts = append(alerts, h.Analyzer.Alerts(hm)...)
	}
	h.logger.Info().Int("hemograms", len(hemograms)).Int("alerts", len(alerts)).Msg("FHIR resource analyzed")
	writeJSON(w, http.StatusOK, alerts)
}
