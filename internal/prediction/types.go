// Package prediction validates compatibility requests, calls the remote model and
// drives the loading/result/error state of the prediction form.
package prediction

import (
	"fmt"
	"strings"
)

// CompatibleLabel is the remote verdict meaning "compatible". Anything else is not.
const CompatibleLabel = "Compatible"

type Input struct {
	DrugName      string `json:"drugName"`
	StructureCode string `json:"structureCode"`
	ExcipientName string `json:"excipientName"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel upper-cases the remote label. Only the three-valued scale is accepted.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch r := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh:
		return r, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

type Outcome struct {
	Compatible   bool      `json:"compatible"`
	Probability  float64   `json:"probability"`
	RiskLevel    RiskLevel `json:"riskLevel"`
	SummaryLines []string  `json:"summaryLines"`
}

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Excipients offered by the prediction form.
var Excipients = []string{
	"Lactose Monohydrate",
	"Microcrystalline Cellulose",
	"Magnesium Stearate",
	"PVP",
	"Starch",
}
