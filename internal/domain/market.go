package domain

import "time"

// Direction indica de qué lado del threshold resuelve YES el mercado.
type Direction string

const (
	DirectionAbove Direction = "ABOVE"
	DirectionBelow Direction = "BELOW"
)

// MarketStatus es el estado de ciclo de vida de un mercado descubierto.
type MarketStatus string

const (
	MarketActive   MarketStatus = "ACTIVE"
	MarketInactive MarketStatus = "INACTIVE"
	MarketResolved MarketStatus = "RESOLVED"
)

// ThresholdMarket es un mercado binario que resuelve según si el precio de un
// asset cruza un nivel dado antes de una fecha dada.
type ThresholdMarket struct {
	ID           string
	Question     string
	Asset        string // BTC | ETH | SOL
	Threshold    float64
	Direction    Direction
	EndDate      time.Time // fecha de resolución
	Volume24h    float64   // volumen últimas 24h en USDC
	Whitelisted  bool      // matchea un patrón de whitelist de preguntas
	Status       MarketStatus
	YesTokenID   string
	NoTokenID    string
	DiscoveredAt time.Time
}

// HoursToResolution devuelve las horas hasta que el mercado se resuelve.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m ThresholdMarket) HoursToResolution() float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := time.Until(m.EndDate).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// TokenFor devuelve el token ID del lado pedido.
func (m ThresholdMarket) TokenFor(side Side) string {
	if side == SideNo {
		return m.NoTokenID
	}
	return m.YesTokenID
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del market ID como fallback.
func TruncateQuestion(question, marketID string, maxLen int) string {
	q := question
	if q == "" {
		if len(marketID) > 20 {
			q = marketID[:20] + "..."
		} else {
			q = marketID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
