package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alejandrodnm/gapbot/internal/domain"
)

// parser.go — extracción de (asset, threshold, direction) de la pregunta de
// un mercado.
//
// El orden importa en dos sitios: los assets se prueban BTC → ETH → SOL (gana
// el primero) y los patrones numéricos en el orden monto con dólar → sufijo
// K/M → número con comas sin dólar (gana el primer patrón que matchea).

// Candidate es el resultado de parsear una pregunta.
type Candidate struct {
	Asset       string
	Threshold   float64
	Direction   domain.Direction
	Whitelisted bool
}

// assetPatterns en orden de prioridad: el primer match gana.
var assetPatterns = []struct {
	asset string
	re    *regexp.Regexp
}{
	{"BTC", regexp.MustCompile(`(?i)\b(btc|bitcoin)\b`)},
	{"ETH", regexp.MustCompile(`(?i)\b(eth|ethereum)\b`)},
	{"SOL", regexp.MustCompile(`(?i)\b(sol|solana)\b`)},
}

// Patrones numéricos en orden de prioridad. El patrón con dólar exige un
// boundary tras los dígitos para no capturar el prefijo de "$100K".
var (
	dollarAmountRe = regexp.MustCompile(`\$([0-9][0-9,]*(?:\.[0-9]+)?)\b`)
	suffixAmountRe = regexp.MustCompile(`(?i)\$([0-9]+(?:\.[0-9]+)?)\s*([km])\b`)
	bareCommaRe    = regexp.MustCompile(`\b([0-9]{1,3}(?:,[0-9]{3})+)\b`)
)

// belowKeywordRe determina la dirección; sin match el default es ABOVE.
var belowKeywordRe = regexp.MustCompile(`(?i)\b(below|under|beneath|dip|drop|fall|crash)`)

// exclusionRe descarta preguntas sobre entidades regulatorias, individuos y
// anuncios especulativos, independientemente de cualquier otro match.
var exclusionRe = regexp.MustCompile(`(?i)\b(sec|etf|regulat\w*|congress|senate|government|lawsuit|trump|biden|musk|saylor|powell|tweet\w*|announc\w*|say\w*|statement|launch\w*|approv\w*)\b`)

// whitelistRe marca las preguntas con la forma canónica "¿asset por
// encima/debajo de $X?" para priorizarlas en el catálogo.
var whitelistRe = regexp.MustCompile(`(?i)\b(above|below|hit|reach|close\s+(?:above|below))\b.*\$`)

// saneRanges son los rangos razonables de threshold por asset. Un threshold
// fuera del rango descarta el candidato (parse erróneo casi seguro).
var saneRanges = map[string]struct{ min, max float64 }{
	"BTC": {10_000, 1_000_000},
	"ETH": {100, 100_000},
	"SOL": {1, 10_000},
}

// Excluded devuelve true si la pregunta matchea algún keyword de exclusión.
func Excluded(question string) bool {
	return exclusionRe.MatchString(question)
}

// ParseQuestion extrae un candidato (asset, threshold, direction) de la
// pregunta. Devuelve false si no hay asset, no hay threshold parseable,
// el threshold cae fuera del rango razonable del asset, o la pregunta está
// excluida.
func ParseQuestion(question string) (Candidate, bool) {
	if Excluded(question) {
		return Candidate{}, false
	}

	asset, ok := matchAsset(question)
	if !ok {
		return Candidate{}, false
	}

	threshold, ok := extractThreshold(question)
	if !ok {
		return Candidate{}, false
	}

	r, ok := saneRanges[asset]
	if !ok || threshold < r.min || threshold > r.max {
		return Candidate{}, false
	}

	direction := domain.DirectionAbove
	if belowKeywordRe.MatchString(question) {
		direction = domain.DirectionBelow
	}

	return Candidate{
		Asset:       asset,
		Threshold:   threshold,
		Direction:   direction,
		Whitelisted: whitelistRe.MatchString(question),
	}, true
}

// matchAsset devuelve el primer asset cuyo patrón matchea.
func matchAsset(question string) (string, bool) {
	for _, p := range assetPatterns {
		if p.re.MatchString(question) {
			return p.asset, true
		}
	}
	return "", false
}

// extractThreshold prueba los patrones numéricos en orden.
func extractThreshold(question string) (float64, bool) {
	if m := dollarAmountRe.FindStringSubmatch(question); m != nil {
		if v, err := parseGrouped(m[1]); err == nil {
			return v, true
		}
	}
	if m := suffixAmountRe.FindStringSubmatch(question); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			switch strings.ToLower(m[2]) {
			case "k":
				return v * 1_000, true
			case "m":
				return v * 1_000_000, true
			}
		}
	}
	if m := bareCommaRe.FindStringSubmatch(question); m != nil {
		if v, err := parseGrouped(m[1]); err == nil {
			return v, true
		}
	}
	return 0, false
}

// parseGrouped parsea un número con separadores de miles.
func parseGrouped(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
