package domain

import "time"

// Side es el lado del contrato que se compra.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// OpportunityStatus es el estado de una oportunidad detectada.
// Una oportunidad nunca se reabre: DETECTED → EXECUTING → EXECUTED | SKIPPED | FAILED.
type OpportunityStatus string

const (
	OpportunityDetected  OpportunityStatus = "DETECTED"
	OpportunityExecuting OpportunityStatus = "EXECUTING"
	OpportunityExecuted  OpportunityStatus = "EXECUTED"
	OpportunitySkipped   OpportunityStatus = "SKIPPED"
	OpportunityFailed    OpportunityStatus = "FAILED"
)

// Opportunity es un gap detectado entre la probabilidad implícita del precio
// del asset y el precio observado del contrato. Inmutable salvo el status.
type Opportunity struct {
	ID            string
	MarketID      string
	Asset         string
	Threshold     float64
	AssetPrice    float64 // precio del asset al momento de la detección
	ExpectedPrice float64 // probabilidad esperada del lado elegido
	ActualPrice   float64 // precio observado del lado elegido
	Gap           float64 // (expected - actual) / expected
	Side          Side    // lado que se cree infravalorado
	DetectedAt    time.Time
	Status        OpportunityStatus
}

// GapPercent devuelve el gap como porcentaje (ej. 0.37 → 37.0).
func (o Opportunity) GapPercent() float64 {
	return o.Gap * 100
}
