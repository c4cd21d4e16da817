package domain

import "time"

// AssetPrice es el snapshot del precio de un asset emitido por el feed.
// Se recalcula en cada tick a partir de la ventana rodante del feed.
type AssetPrice struct {
	Asset     string
	Price     float64
	Timestamp time.Time
	Change1m  float64 // cambio relativo vs ~1 minuto atrás, 0 si no hay referencia
	Change5m  float64 // cambio relativo vs ~5 minutos atrás, 0 si no hay referencia
}

// Above devuelve true si el precio está estrictamente por encima del threshold.
func (p AssetPrice) Above(threshold float64) bool {
	return p.Price > threshold
}
