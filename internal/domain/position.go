package domain

import "time"

// PositionStatus es el estado de ciclo de vida de una posición.
// OPEN → CLOSING → CLOSED, terminal. Nunca retrocede.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "OPEN"
	PositionClosing PositionStatus = "CLOSING"
	PositionClosed  PositionStatus = "CLOSED"
)

// ExitReason es la regla de salida que cerró la posición.
type ExitReason string

const (
	ExitProfit   ExitReason = "PROFIT"
	ExitStopLoss ExitReason = "STOP_LOSS"
	ExitTime     ExitReason = "TIME"
	ExitReversal ExitReason = "REVERSAL"
)

// Position es una posición simulada en un lado de un mercado threshold.
type Position struct {
	ID           string
	MarketID     string
	Asset        string
	Side         Side
	EntryPrice   float64 // precio del contrato al abrir
	Quantity     float64 // shares = size / entryPrice
	EntryTime    time.Time
	PriceAtEntry float64 // precio del asset subyacente al abrir
	ExitPrice    *float64
	ExitTime     *time.Time
	ExitReason   ExitReason
	RealizedPnL  *float64
	Status       PositionStatus
}

// CostBasis devuelve el capital comprometido al abrir: quantity × entryPrice.
func (p Position) CostBasis() float64 {
	return p.Quantity * p.EntryPrice
}

// UnrealizedReturn devuelve el retorno no realizado dado el precio actual del contrato.
func (p Position) UnrealizedReturn(currentPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (currentPrice - p.EntryPrice) / p.EntryPrice
}

// HoldTime devuelve cuánto tiempo lleva abierta la posición en el instante dado.
func (p Position) HoldTime(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// EnteredAbove devuelve true si el asset estaba por encima del threshold al abrir.
func (p Position) EnteredAbove(threshold float64) bool {
	return p.PriceAtEntry > threshold
}

// SessionSummary agrega los resultados de una sesión de trading.
type SessionSummary struct {
	StartedAt   time.Time
	StoppedAt   time.Time
	Opened      int
	Closed      int
	Wins        int
	Losses      int
	RealizedPnL float64
	ByReason    map[ExitReason]int
}

// WinRate devuelve la fracción de cierres con P&L positivo, 0 si no hubo cierres.
func (s SessionSummary) WinRate() float64 {
	if s.Closed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closed)
}
