package ports

import (
	"context"
	"time"
)

// RawListing es un listing crudo de la fuente de mercados, antes de parsear
// la pregunta y validar el candidato.
type RawListing struct {
	ID         string
	Question   string
	Volume24h  float64
	EndDate    time.Time
	Active     bool
	Closed     bool
	YesTokenID string
	NoTokenID  string
	YesPrice   float64
	NoPrice    float64
}

// MarketDataProvider obtiene listings de mercados abiertos y precios de
// contratos desde la fuente de mercados.
type MarketDataProvider interface {
	// ListOpenMarkets devuelve todos los listings abiertos.
	// Pagina automáticamente hasta agotar los resultados.
	ListOpenMarkets(ctx context.Context) ([]RawListing, error)

	// FetchPrices devuelve el precio actual de compra por token ID.
	// Los tokens sin precio disponible se omiten del resultado.
	FetchPrices(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}
