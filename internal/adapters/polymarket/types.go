package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a ports.RawListing se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es un listing de mercado de Gamma.
// Gamma devuelve algunos campos numéricos como strings JSON (usamos json.Number)
// y los arrays de tokens/precios como JSON serializado dentro de un string.
type gammaMarket struct {
	ID            string      `json:"id"`
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	EndDateISO    string      `json:"endDateIso"`
	Volume24h     json.Number `json:"volume24hr"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
	CLOBTokenIDs  string      `json:"clobTokenIds"`  // `["yesTokenID","noTokenID"]`
	OutcomePrices string      `json:"outcomePrices"` // `["0.55","0.45"]`
}

// --- CLOB API ---

// priceRequest es un item del body del POST /prices batch.
type priceRequest struct {
	TokenID string `json:"token_id"`
	Side    string `json:"side"` // BUY | SELL
}

// priceResponse es la respuesta del POST /prices:
// token_id → side → precio como string.
type priceResponse map[string]map[string]string
