package execution

// sizing.go — tamaño de posición en función del gap y del volumen del
// mercado. Cada eje contribuye solo su primer multiplicador que matchea y
// el resultado nunca supera maxPositionSize.

// gapTiers en orden descendente: gap mínimo → multiplicador.
var gapTiers = []struct {
	minGap float64
	mult   float64
}{
	{0.50, 2.0},
	{0.35, 1.5},
	{0.25, 1.2},
}

// volumeTiers en orden descendente: volumen 24h mínimo → multiplicador.
var volumeTiers = []struct {
	minVolume float64
	mult      float64
}{
	{500_000, 1.5},
	{100_000, 1.2},
}

// Sizer calcula el tamaño en USDC de una posición.
type Sizer struct {
	baseSize float64
	maxSize  float64
}

// NewSizer construye un sizer con el tamaño base y el tope por posición.
func NewSizer(baseSize, maxSize float64) *Sizer {
	return &Sizer{baseSize: baseSize, maxSize: maxSize}
}

// Size devuelve min(maxSize, base × gapMult × volMult).
func (s *Sizer) Size(gap, marketVolume float64) float64 {
	size := s.baseSize * gapMultiplier(gap) * volumeMultiplier(marketVolume)
	if size > s.maxSize {
		return s.maxSize
	}
	return size
}

func gapMultiplier(gap float64) float64 {
	for _, t := range gapTiers {
		if gap >= t.minGap {
			return t.mult
		}
	}
	return 1.0
}

func volumeMultiplier(volume float64) float64 {
	for _, t := range volumeTiers {
		if volume >= t.minVolume {
			return t.mult
		}
	}
	return 1.0
}
