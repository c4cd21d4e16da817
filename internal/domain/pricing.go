package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Constantes del modelo de probabilidad. Producen una curva S saturante,
// monótona en la distancia al threshold y centrada cerca de 0.5 en el threshold.
const (
	probBaseHigh   = 0.75 // base cuando el precio ya cruzó el threshold
	probSlopeHigh  = 12.0 // pendiente por unidad de distancia relativa (lado favorable)
	probBonusCap   = 0.20 // bonus máximo sobre la base
	probCapHigh    = 0.95 // techo absoluto
	probBaseLow    = 0.50 // base cuando el precio aún no cruzó
	probSlopeLow   = 4.0  // pendiente por unidad de distancia relativa (lado desfavorable)
	probPenaltyCap = 0.45 // penalización máxima bajo la base
	probFloorLow   = 0.05 // piso absoluto
)

// ExpectedProbability estima el precio justo del lado YES de un mercado threshold
// a partir del precio actual del asset. Resultado en [probFloorLow, probCapHigh].
//
// Para direction ABOVE con distance = (price - threshold) / threshold:
//
//	price > threshold:  min(0.95, 0.75 + min(0.20, distance × 12))
//	price ≤ threshold:  max(0.05, 0.50 - min(0.45, |distance| × 4))
//
// BELOW es el espejo con la desigualdad y el signo invertidos. Exactamente en el
// threshold aplica la rama de abajo (desigualdad estricta): resultado 0.50.
func ExpectedProbability(price, threshold float64, direction Direction) float64 {
	if threshold <= 0 || price <= 0 {
		return probBaseLow
	}

	favorable := price > threshold
	if direction == DirectionBelow {
		favorable = price < threshold
	}
	distance := math.Abs((price - threshold) / threshold)

	if favorable {
		p := probBaseHigh + math.Min(probBonusCap, distance*probSlopeHigh)
		return math.Min(probCapHigh, p)
	}
	p := probBaseLow - math.Min(probPenaltyCap, distance*probSlopeLow)
	return math.Max(probFloorLow, p)
}

// RelativeGap devuelve el gap relativo entre el precio esperado y el observado:
// (expected - actual) / expected. Positivo = el contrato está infravalorado.
// Devuelve -Inf si alguno de los precios no es válido, para que ese lado
// nunca gane la selección.
func RelativeGap(expected, actual float64) float64 {
	if expected <= 0 || actual <= 0 {
		return math.Inf(-1)
	}
	return (expected - actual) / expected
}

// DetectMispricing compara la probabilidad esperada del modelo (y su complemento)
// contra los precios observados de ambos lados y elige el lado con mayor gap
// con signo. Devuelve una oportunidad solo si ese gap es ≥ minGap: el bot solo
// compra exposición infravalorada, nunca shortea la sobrevalorada.
func DetectMispricing(m ThresholdMarket, price AssetPrice, yesPrice, noPrice, minGap float64) (Opportunity, bool) {
	expectedYes := ExpectedProbability(price.Price, m.Threshold, m.Direction)
	expectedNo := 1 - expectedYes

	gapYes := RelativeGap(expectedYes, yesPrice)
	gapNo := RelativeGap(expectedNo, noPrice)

	side, gap, expected, actual := SideYes, gapYes, expectedYes, yesPrice
	if gapNo > gapYes {
		side, gap, expected, actual = SideNo, gapNo, expectedNo, noPrice
	}

	if gap < minGap {
		return Opportunity{}, false
	}

	return Opportunity{
		ID:            uuid.NewString(),
		MarketID:      m.ID,
		Asset:         m.Asset,
		Threshold:     m.Threshold,
		AssetPrice:    price.Price,
		ExpectedPrice: expected,
		ActualPrice:   actual,
		Gap:           gap,
		Side:          side,
		DetectedAt:    time.Now().UTC(),
		Status:        OpportunityDetected,
	}, true
}
