package ports

import (
	"context"
	"time"
)

// Tick es un update de precio crudo recibido del stream del exchange.
type Tick struct {
	Asset string // símbolo normalizado: BTC, ETH, SOL
	Price float64
	Time  time.Time
}

// PriceStream es una conexión push al feed de precios del exchange.
// Connect puede llamarse de nuevo tras un error de lectura; cada llamada
// abre una conexión fresca sobre los mismos canales.
type PriceStream interface {
	// Connect abre la conexión y arranca los loops de lectura y keep-alive.
	Connect(ctx context.Context) error

	// Ticks devuelve el canal de updates de precio.
	Ticks() <-chan Tick

	// Errs devuelve el canal de errores de lectura. Un error implica que la
	// conexión actual está muerta y hay que reconectar.
	Errs() <-chan error

	// Close cierra la conexión actual.
	Close() error
}
