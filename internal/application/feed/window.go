package feed

import "time"

const (
	// Una muestra por segundo como máximo: ticks más rápidos (o duplicados
	// fuera de orden) se descartan implícitamente.
	sampleMinGap = time.Second
	// Retención de la ventana rodante: 5 minutos de pared Y 300 muestras,
	// lo que sea más estricto.
	sampleRetention = 5 * time.Minute
	maxSamples      = 300
)

// sample es un par (precio, timestamp) de la ventana rodante.
type sample struct {
	price float64
	at    time.Time
}

// window es la ventana rodante de precios de un asset. Append-only,
// timestamps monótonos, nunca supera maxSamples.
type window struct {
	samples []sample
}

// add agrega una muestra si pasó al menos sampleMinGap desde la última
// retenida. Devuelve true si la muestra se retuvo.
func (w *window) add(price float64, at time.Time) bool {
	if n := len(w.samples); n > 0 {
		if at.Sub(w.samples[n-1].at) < sampleMinGap {
			return false
		}
	}
	w.samples = append(w.samples, sample{price: price, at: at})
	return true
}

// prune descarta muestras fuera de la retención de pared y por encima del cap.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-sampleRetention)
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
	if excess := len(w.samples) - maxSamples; excess > 0 {
		w.samples = append(w.samples[:0], w.samples[excess:]...)
	}
}

// changeSince devuelve el cambio relativo del precio actual contra la última
// muestra en o antes de now-horizon. Si ninguna muestra es tan vieja usa la
// más antigua; sin referencia devuelve 0.
func (w *window) changeSince(now time.Time, horizon time.Duration, current float64) float64 {
	if len(w.samples) == 0 {
		return 0
	}

	target := now.Add(-horizon)
	var ref float64
	found := false
	for i := len(w.samples) - 1; i >= 0; i-- {
		if !w.samples[i].at.After(target) {
			ref = w.samples[i].price
			found = true
			break
		}
	}
	if !found {
		ref = w.samples[0].price
	}
	if ref <= 0 {
		return 0
	}
	return (current - ref) / ref
}

// len devuelve cuántas muestras retiene la ventana.
func (w *window) len() int {
	return len(w.samples)
}
