package models

// Alert is one hemogram alert as served by the alerts API.
type Alert struct {
	Message   string `json:"message"`
	Region    string `json:"region"`
	Parameter string `json:"parameter"`
}
